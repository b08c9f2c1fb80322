package deploy

import (
	"context"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

// fakeRunner scripts the target host: every command is recorded, and
// fail decides which ones report a non-zero exit.
type fakeRunner struct {
	cmds []string
	fail func(cmd string) error
}

func (f *fakeRunner) Run(ctx context.Context, cmd string) ([]byte, error) {
	f.cmds = append(f.cmds, cmd)
	if f.fail != nil {
		if err := f.fail(cmd); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (f *fakeRunner) ran(substr string) bool {
	for _, c := range f.cmds {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

func failOn(substrs ...string) func(string) error {
	return func(cmd string) error {
		for _, s := range substrs {
			if strings.Contains(cmd, s) {
				return errors.New("exit status 1")
			}
		}
		return nil
	}
}

func newDeployer(r *fakeRunner, cfg Config) *Deployer {
	return &Deployer{Runner: r, Logger: log.NewNopLogger(), Config: cfg}
}

func TestApplyFreshTarget(t *testing.T) {
	// No .git marker on the target: the repo must be cloned, not pulled.
	r := &fakeRunner{fail: failOn("test -d \"app\"/.git")}
	d := newDeployer(r, Config{RepoURL: "git@example.com:org/app", Branch: "main", AppDir: "app", Restart: ProcessRestart{AppDir: "app", Command: "./venv/bin/python app.py"}})

	state, err := d.Apply(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StateEnd, state)
	assert.True(t, r.ran("git clone --branch"))
	assert.False(t, r.ran("git pull"))
	assert.True(t, r.ran("pip install -r requirements.txt"))
	assert.True(t, r.ran("nohup"))
}

func TestApplyExistingTarget(t *testing.T) {
	// Marker present: same deploy converges by fetch/checkout/pull.
	r := &fakeRunner{}
	d := newDeployer(r, Config{RepoURL: "git@example.com:org/app", Branch: "main", AppDir: "app", Restart: ProcessRestart{AppDir: "app", Command: "./venv/bin/python app.py"}})

	state, err := d.Apply(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StateEnd, state)
	assert.False(t, r.ran("git clone"))
	assert.True(t, r.ran("git fetch origin"))
	assert.True(t, r.ran("git checkout \"main\""))
	assert.True(t, r.ran("git pull origin \"main\""))
}

func TestApplyCreatesMissingBranch(t *testing.T) {
	r := &fakeRunner{fail: failOn("rev-parse")}
	d := newDeployer(r, Config{RepoURL: "git@example.com:org/app", Branch: "staging", AppDir: "app", CreateMissingBranch: true, Restart: ServiceRestart{Unit: "flaskapp.service"}})

	state, err := d.Apply(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, StateEnd, state)
	assert.True(t, r.ran(`git checkout -b "staging" origin/"staging"`))
}

func TestApplyMissingBranchFatalWithoutCreate(t *testing.T) {
	r := &fakeRunner{fail: failOn("rev-parse")}
	d := newDeployer(r, Config{RepoURL: "git@example.com:org/app", Branch: "staging", AppDir: "app", Restart: ServiceRestart{Unit: "flaskapp.service"}})

	state, err := d.Apply(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateDirectoryReady, state)
}

func TestApplyManifestMissing(t *testing.T) {
	r := &fakeRunner{fail: failOn("test -f")}
	d := newDeployer(r, Config{RepoURL: "git@example.com:org/app", Branch: "main", AppDir: "app", Restart: ProcessRestart{AppDir: "app", Command: "./venv/bin/python app.py"}})

	state, err := d.Apply(context.Background())
	assert.Equal(t, ErrManifestMissing, err)
	assert.Equal(t, "ERROR: requirements.txt not found!", err.Error())
	assert.Equal(t, StateEnvReady, state)

	// A failed verification must stop the run before install and restart.
	assert.False(t, r.ran("pip install -r requirements.txt"))
	assert.False(t, r.ran("nohup"))
}

func TestApplyEnvFailureStopsRun(t *testing.T) {
	r := &fakeRunner{fail: failOn("venv venv")}
	d := newDeployer(r, Config{RepoURL: "git@example.com:org/app", Branch: "main", AppDir: "app", Restart: ProcessRestart{AppDir: "app", Command: "run"}})

	state, err := d.Apply(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateRepoReady, state)
}
