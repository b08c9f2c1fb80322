// Package python manages the isolated dependency environment
// (virtualenv) used by the build and test stages, by shelling out to
// the interpreter found on PATH.
package python

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultInterpreter is used when no interpreter is configured.
	DefaultInterpreter = "python3"
	// ManifestName is the dependency manifest looked for in working copies.
	ManifestName = "requirements.txt"
	// EnvDirName is the directory the virtualenv is created in, relative
	// to the working copy.
	EnvDirName = "venv"
)

var ErrNoInterpreter = errors.New("python interpreter not found on PATH")

// Env is a dependency environment scoped to one working copy. It is
// recreated if absent, otherwise reused and re-synced against the
// manifest.
type Env struct {
	WorkDir     string
	Interpreter string
}

// NewEnv returns an Env rooted at the working copy given. An empty
// interpreter means DefaultInterpreter.
func NewEnv(workDir, interpreter string) *Env {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}
	return &Env{WorkDir: workDir, Interpreter: interpreter}
}

func (e *Env) dir() string {
	return filepath.Join(e.WorkDir, EnvDirName)
}

func (e *Env) bin(name string) string {
	return filepath.Join(e.dir(), "bin", name)
}

// ManifestPresent reports whether the dependency manifest exists in
// the working copy. Its absence is only a warning-worthy gap at build
// and test time; the deploy stage treats it as fatal.
func (e *Env) ManifestPresent() bool {
	_, err := os.Stat(filepath.Join(e.WorkDir, ManifestName))
	return err == nil
}

// Ensure creates the virtualenv if it is missing, upgrades the
// installer, and installs from the manifest. Any install failure is
// fatal to the caller; there is no suppression here.
func (e *Env) Ensure(ctx context.Context) error {
	if _, err := exec.LookPath(e.Interpreter); err != nil {
		return ErrNoInterpreter
	}
	if _, err := os.Stat(e.bin("pip")); err != nil {
		if err := e.run(ctx, e.WorkDir, e.Interpreter, "-m", "venv", e.dir()); err != nil {
			return errors.Wrap(err, "creating virtualenv")
		}
	}
	if err := e.run(ctx, e.WorkDir, e.bin("pip"), "install", "--upgrade", "pip"); err != nil {
		return errors.Wrap(err, "upgrading pip")
	}
	if !e.ManifestPresent() {
		return nil
	}
	if err := e.run(ctx, e.WorkDir, e.bin("pip"), "install", "-r", ManifestName); err != nil {
		return errors.Wrap(err, "installing from "+ManifestName)
	}
	return nil
}

// Test runs the test command inside the environment. The command is a
// whitespace-separated program and arguments, resolved against the
// virtualenv's bin directory first. A command with no fields at all
// falls back to the default runner.
func (e *Env) Test(ctx context.Context, command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		parts = []string{"pytest"}
	}
	prog := parts[0]
	if _, err := os.Stat(e.bin(prog)); err == nil {
		prog = e.bin(prog)
	}
	if err := e.run(ctx, e.WorkDir, prog, parts[1:]...); err != nil {
		return errors.Wrap(err, "running tests")
	}
	return nil
}

// run executes a command with combined output folded into the error,
// the same way git invocations are handled.
func (e *Env) run(ctx context.Context, dir, prog string, args ...string) error {
	c := exec.CommandContext(ctx, prog, args...)
	c.Dir = dir
	out := &bytes.Buffer{}
	c.Stdout = out
	c.Stderr = out

	err := c.Run()
	if err != nil && out.Len() > 0 {
		err = errors.New(strings.TrimSpace(out.String()))
	}
	if ctx.Err() == context.DeadlineExceeded {
		return errors.Wrap(ctx.Err(), fmt.Sprintf("running command: %s %v", prog, args))
	}
	return err
}
