package python

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEnvDefaults(t *testing.T) {
	e := NewEnv("/tmp/wc", "")
	assert.Equal(t, DefaultInterpreter, e.Interpreter)

	e = NewEnv("/tmp/wc", "python3.8")
	assert.Equal(t, "python3.8", e.Interpreter)
}

func TestManifestPresent(t *testing.T) {
	dir, err := ioutil.TempDir("", "ferry-python-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	e := NewEnv(dir, "")
	assert.False(t, e.ManifestPresent())

	if err := ioutil.WriteFile(filepath.Join(dir, ManifestName), []byte("flask\n"), 0644); err != nil {
		t.Fatal(err)
	}
	assert.True(t, e.ManifestPresent())
}

func TestEnsureNoInterpreter(t *testing.T) {
	dir, err := ioutil.TempDir("", "ferry-python-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	e := NewEnv(dir, "definitely-not-an-interpreter")
	assert.Equal(t, ErrNoInterpreter, e.Ensure(context.Background()))
}

// Test uses shell trickery stand-ins rather than a real virtualenv:
// the resolution rule is what matters, i.e. programs in the env's bin
// directory shadow the PATH.
func TestTestCommandResolution(t *testing.T) {
	dir, err := ioutil.TempDir("", "ferry-python-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	e := NewEnv(dir, "")
	bin := filepath.Join(dir, EnvDirName, "bin")
	if err := os.MkdirAll(bin, 0755); err != nil {
		t.Fatal(err)
	}

	marker := filepath.Join(dir, "ran")
	script := "#!/bin/sh\ntouch " + marker + "\n"
	if err := ioutil.WriteFile(filepath.Join(bin, "pytest"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	if err := e.Test(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("expected the env's own pytest to have run")
	}

	// A command of only whitespace gets the same fallback as an empty
	// one, rather than blowing up on a zero-field split.
	if err := os.Remove(marker); err != nil {
		t.Fatal(err)
	}
	if err := e.Test(context.Background(), " \t "); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("expected the fallback runner for a blank command")
	}
}
