// Package deploy drives the release of a working copy onto the target
// host: it makes sure the source is present and current there,
// re-provisions the dependency environment, and restarts the
// application.
package deploy

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/deployferry/ferry/pkg/ssh"
)

// State is how far a deploy run has progressed. Failure exits early
// from every state except the final restart step, which has its own
// policy (see RestartStrategy).
type State string

const (
	StateStart            State = "start"
	StateDirectoryReady   State = "directory-ready"
	StateRepoReady        State = "repo-ready"
	StateEnvReady         State = "env-ready"
	StateManifestVerified State = "manifest-verified"
	StateRestarted        State = "restarted"
	StateEnd              State = "end"
)

// ErrManifestMissing is the fatal diagnostic for a deploy attempted
// against a working copy with no dependency manifest.
var ErrManifestMissing = errors.New("ERROR: requirements.txt not found!")

// Config is everything the deployer needs to know about the target.
// Host, user and key live with the Runner; this is the remote-side
// shape of the deployment.
type Config struct {
	RepoURL string
	Branch  string
	AppDir  string

	// CreateMissingBranch makes the remote working copy grow a local
	// branch when it doesn't have one for the configured branch yet.
	CreateMissingBranch bool

	Restart RestartStrategy
}

// Deployer runs the deploy state machine over a command Runner.
type Deployer struct {
	Runner ssh.Runner
	Logger log.Logger
	Config Config
}

// Apply walks the machine from start to end, returning the state
// reached. A non-nil error means the run stopped there.
func (d *Deployer) Apply(ctx context.Context) (State, error) {
	state := StateStart
	step := func(next State, fn func() error) error {
		if err := fn(); err != nil {
			return err
		}
		state = next
		d.Logger.Log("state", state)
		return nil
	}

	if err := step(StateDirectoryReady, func() error { return d.ensureDir(ctx) }); err != nil {
		return state, err
	}
	if err := step(StateRepoReady, func() error { return d.ensureRepo(ctx) }); err != nil {
		return state, err
	}
	if err := step(StateEnvReady, func() error { return d.ensureEnv(ctx) }); err != nil {
		return state, err
	}
	if err := step(StateManifestVerified, func() error { return d.verifyManifest(ctx) }); err != nil {
		return state, err
	}
	// Installing is part of moving from manifest-verified to the
	// restart step; it does not get a state of its own.
	if err := d.installManifest(ctx); err != nil {
		return state, err
	}

	// The restart step carries its own failure policy; a strategy may
	// degrade to a warning instead of failing the run.
	if err := d.Config.Restart.Restart(ctx, d.Runner, d.Logger); err != nil {
		return state, err
	}
	state = StateRestarted

	return StateEnd, nil
}

func (d *Deployer) ensureDir(ctx context.Context) error {
	_, err := d.Runner.Run(ctx, fmt.Sprintf("mkdir -p %q", d.Config.AppDir))
	return errors.Wrap(err, "ensuring target directory")
}

// ensureRepo is the marker-check idempotency strategy, remote edition:
// clone if the marker is absent, otherwise fetch, check out the branch
// (creating it if configured to), and pull.
func (d *Deployer) ensureRepo(ctx context.Context) error {
	dir := d.Config.AppDir
	branch := d.Config.Branch

	if _, err := d.Runner.Run(ctx, fmt.Sprintf("test -d %q/.git", dir)); err != nil {
		_, err := d.Runner.Run(ctx, fmt.Sprintf("git clone --branch %q %q %q", branch, d.Config.RepoURL, dir))
		return errors.Wrap(err, "cloning on target host")
	}

	if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && git fetch origin", dir)); err != nil {
		return errors.Wrap(err, "fetching on target host")
	}

	if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && git rev-parse --verify %q", dir, branch)); err != nil {
		if !d.Config.CreateMissingBranch {
			return errors.Wrapf(err, "branch %q not present on target host", branch)
		}
		if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && git checkout -b %q origin/%q", dir, branch, branch)); err != nil {
			if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && git checkout -b %q", dir, branch)); err != nil {
				return errors.Wrapf(err, "creating branch %q on target host", branch)
			}
		}
	} else if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && git checkout %q", dir, branch)); err != nil {
		return errors.Wrapf(err, "checking out branch %q on target host", branch)
	}

	if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && git pull origin %q", dir, branch)); err != nil {
		return errors.Wrap(err, "pulling on target host")
	}
	return nil
}

func (d *Deployer) ensureEnv(ctx context.Context) error {
	dir := d.Config.AppDir
	if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && test -d venv || python3 -m venv venv", dir)); err != nil {
		return errors.Wrap(err, "creating remote virtualenv")
	}
	if _, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && ./venv/bin/pip install --upgrade pip", dir)); err != nil {
		return errors.Wrap(err, "upgrading pip on target host")
	}
	return nil
}

func (d *Deployer) verifyManifest(ctx context.Context) error {
	if _, err := d.Runner.Run(ctx, fmt.Sprintf("test -f %q/requirements.txt", d.Config.AppDir)); err != nil {
		d.Logger.Log("err", ErrManifestMissing.Error())
		return ErrManifestMissing
	}
	return nil
}

func (d *Deployer) installManifest(ctx context.Context) error {
	_, err := d.Runner.Run(ctx, fmt.Sprintf("cd %q && ./venv/bin/pip install -r requirements.txt", d.Config.AppDir))
	return errors.Wrap(err, "installing from requirements.txt on target host")
}
