package ssh

import (
	"io/ioutil"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// KeyRing tracks the deploy key the daemon presents to the target host.
type KeyRing interface {
	KeyPair() (publicKey PublicKey, privateKeyPath string)
	Regenerate() error
}

// PublicKey is the shareable half of a deploy key, with fingerprints an
// operator can match against the target host's authorized_keys.
type PublicKey struct {
	Key          string            `json:"key"`
	Fingerprints map[string]string `json:"fingerprints"`
}

type fileKeyRing struct {
	path string

	mu  sync.RWMutex
	pub PublicKey
}

// NewFileKeyRing returns a KeyRing backed by the private key at path,
// generating a fresh key there if none exists yet.
func NewFileKeyRing(path string) (KeyRing, error) {
	kr := &fileKeyRing{path: path}
	keyData, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return kr, kr.Regenerate()
	}
	if err != nil {
		return nil, err
	}
	kr.pub, err = publicKeyOf(keyData)
	if err != nil {
		return nil, errors.Wrapf(err, "reading deploy key %s", path)
	}
	return kr, nil
}

func (kr *fileKeyRing) KeyPair() (PublicKey, string) {
	kr.mu.RLock()
	defer kr.mu.RUnlock()
	return kr.pub, kr.path
}

func (kr *fileKeyRing) Regenerate() error {
	keyData, err := NewKeyGenerator().Generate()
	if err != nil {
		return err
	}
	pub, err := publicKeyOf(keyData)
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(kr.path, keyData, 0600); err != nil {
		return errors.Wrapf(err, "writing deploy key %s", kr.path)
	}
	kr.mu.Lock()
	kr.pub = pub
	kr.mu.Unlock()
	return nil
}

func publicKeyOf(keyData []byte) (PublicKey, error) {
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return PublicKey{}, err
	}
	md5Print, err := Fingerprint(keyData, "md5")
	if err != nil {
		return PublicKey{}, err
	}
	sha256Print, err := Fingerprint(keyData, "sha256")
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{
		Key: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(signer.PublicKey()))),
		Fingerprints: map[string]string{
			"md5":    md5Print,
			"sha256": sha256Print,
		},
	}, nil
}
