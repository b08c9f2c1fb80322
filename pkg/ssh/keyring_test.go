package ssh

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileKeyRing(t *testing.T) {
	if testing.Short() {
		t.Skip("key generation is slow")
	}
	origSize := KeySize
	KeySize = 1024
	defer func() { KeySize = origSize }()

	dir, err := ioutil.TempDir("", "ferry-keyring")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "identity")

	kr, err := NewFileKeyRing(path)
	if err != nil {
		t.Fatal(err)
	}
	pub, keyPath := kr.KeyPair()
	if keyPath != path {
		t.Errorf("key path: got %s, want %s", keyPath, path)
	}
	if !strings.HasPrefix(pub.Key, "ssh-rsa ") {
		t.Errorf("unexpected public key: %q", pub.Key)
	}
	if pub.Fingerprints["md5"] == "" || pub.Fingerprints["sha256"] == "" {
		t.Errorf("missing fingerprints: %v", pub.Fingerprints)
	}
	if info, err := os.Stat(path); err != nil {
		t.Fatal(err)
	} else if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode: %v", info.Mode())
	}

	// A second ring over the same path loads the existing key.
	kr2, err := NewFileKeyRing(path)
	if err != nil {
		t.Fatal(err)
	}
	pub2, _ := kr2.KeyPair()
	if pub2.Key != pub.Key {
		t.Error("existing key was not reused")
	}

	if err := kr.Regenerate(); err != nil {
		t.Fatal(err)
	}
	pub3, _ := kr.KeyPair()
	if pub3.Key == pub.Key {
		t.Error("regenerated key matches the old one")
	}
}
