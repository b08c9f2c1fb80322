package config

import (
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Credentials are the values needed to open a deploy session against
// the target host. They are deliberately not embedded in Config: one
// deployment style carries them in environment-derived configuration,
// another injects them from a secret store mounted on the filesystem.
type Credentials struct {
	Host    string
	User    string
	KeyPath string
}

// CredentialsProvider supplies {host, user, key} at run time from some
// backing store.
type CredentialsProvider interface {
	Credentials() (Credentials, error)
}

// StaticCredentials is a CredentialsProvider with fixed values, e.g.,
// taken from flags or environment variables.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials() (Credentials, error) {
	if s.Host == "" || s.User == "" || s.KeyPath == "" {
		return Credentials{}, errors.New("remote host, user, and key path must be configured")
	}
	return Credentials(s), nil
}

// Names of the files expected in a mounted secret directory.
const (
	secretHostFile = "host"
	secretUserFile = "user"
	secretKeyFile  = "identity"
)

// FileCredentials reads credentials from files in a directory, which
// is expected to be a mounted secret volume. The private key stays on
// the filesystem; only its path is handed out.
type FileCredentials struct {
	Dir string
}

func (f FileCredentials) Credentials() (Credentials, error) {
	read := func(name string) (string, error) {
		b, err := ioutil.ReadFile(filepath.Join(f.Dir, name))
		if err != nil {
			return "", errors.Wrapf(err, "reading secret file %q", name)
		}
		return strings.TrimSpace(string(b)), nil
	}

	host, err := read(secretHostFile)
	if err != nil {
		return Credentials{}, err
	}
	user, err := read(secretUserFile)
	if err != nil {
		return Credentials{}, err
	}
	keyPath := filepath.Join(f.Dir, secretKeyFile)
	if _, err := ioutil.ReadFile(keyPath); err != nil {
		return Credentials{}, errors.Wrap(err, "reading secret identity file")
	}
	return Credentials{Host: host, User: user, KeyPath: keyPath}, nil
}
