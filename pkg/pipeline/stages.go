package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/deployferry/ferry/pkg/deploy"
	"github.com/deployferry/ferry/pkg/git"
	"github.com/deployferry/ferry/pkg/python"
	"github.com/deployferry/ferry/pkg/ssh"
)

// CheckoutStage produces a local working copy at the run's branch tip.
type CheckoutStage struct {
	Remote   git.Remote
	Strategy git.EnsureStrategy
	Dir      string

	// Timeout bounds the git operations; zero means no bound beyond
	// the run's context.
	Timeout time.Duration
}

func (s CheckoutStage) Name() string { return "checkout" }

func (s CheckoutStage) Execute(ctx context.Context, rc *RunContext) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	wc, err := s.Strategy.Ensure(ctx, s.Remote, rc.Branch, s.Dir)
	if err != nil {
		return errors.Wrap(err, "ensuring working copy")
	}
	rc.WorkDir = wc.Dir
	rev, err := wc.HeadRevision(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving branch head")
	}
	rc.Revision = rev
	rc.Logger.Log("checkout", s.Strategy.Name(), "revision", rev)
	return nil
}

// BuildStage provisions the dependency environment in the working
// copy. A missing manifest is a warning here, not a failure; only the
// deploy stage insists on it.
type BuildStage struct {
	Interpreter string
}

func (s BuildStage) Name() string { return "build" }

func (s BuildStage) Execute(ctx context.Context, rc *RunContext) error {
	env := python.NewEnv(rc.WorkDir, s.Interpreter)
	if !env.ManifestPresent() {
		rc.Logger.Log("warning", "no "+python.ManifestName+" in working copy; building an empty environment")
	}
	return env.Ensure(ctx)
}

// TestStage runs the test command inside the built environment. It
// always propagates failure; whether that stops the run is the
// pipeline definition's business.
type TestStage struct {
	Interpreter string
	Command     string
}

func (s TestStage) Name() string { return "test" }

func (s TestStage) Execute(ctx context.Context, rc *RunContext) error {
	return python.NewEnv(rc.WorkDir, s.Interpreter).Test(ctx, s.Command)
}

// DeployStage releases the run's branch onto the target host.
type DeployStage struct {
	Runner ssh.Runner
	Config deploy.Config
}

func (s DeployStage) Name() string { return "deploy" }

func (s DeployStage) Execute(ctx context.Context, rc *RunContext) error {
	cfg := s.Config
	cfg.Branch = rc.Branch
	d := &deploy.Deployer{
		Runner: s.Runner,
		Logger: rc.Logger,
		Config: cfg,
	}
	state, err := d.Apply(ctx)
	if err != nil {
		return errors.Wrapf(err, "deploy stopped at state %q", state)
	}
	return nil
}

// AssembleConfig is the daemon-side material needed to turn a
// Definition into runnable stages.
type AssembleConfig struct {
	Remote       git.Remote
	WorkDir      string // parent directory for local working copies
	AppDir       string // application directory name, also used on the target host
	Interpreter  string
	TestCommand  string
	Runner       ssh.Runner
	RemoteAppDir string

	// GitTimeout bounds the checkout stage's git operations;
	// StageTimeout bounds every stage. Zero disables either.
	GitTimeout   time.Duration
	StageTimeout time.Duration
}

// Assemble builds the concrete pipeline a definition describes.
func Assemble(def Definition, cfg AssembleConfig) (*Pipeline, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	var ensure git.EnsureStrategy
	switch def.CheckoutStrategy {
	case CheckoutFreshClone:
		ensure = git.FreshClone{}
	case CheckoutMarkerCheck:
		ensure = git.MarkerCheck{CreateMissingBranch: def.Deploy.CreateMissingBranch}
	}

	var restart deploy.RestartStrategy
	switch def.Deploy.Restart {
	case RestartProcess:
		restart = deploy.ProcessRestart{AppDir: cfg.RemoteAppDir, Command: def.Deploy.Command}
	case RestartService:
		restart = deploy.ServiceRestart{Unit: def.Deploy.Unit}
	}

	testCommand := def.TestCommand
	if testCommand == "" {
		testCommand = cfg.TestCommand
	}

	return &Pipeline{
		Name:         def.Name,
		StageTimeout: cfg.StageTimeout,
		Stages: []StageSpec{
			{Stage: CheckoutStage{
				Remote:   cfg.Remote,
				Strategy: ensure,
				Dir:      filepath.Join(cfg.WorkDir, cfg.AppDir),
				Timeout:  cfg.GitTimeout,
			}},
			{Stage: BuildStage{Interpreter: cfg.Interpreter}},
			{
				Stage:           TestStage{Interpreter: cfg.Interpreter, Command: testCommand},
				ContinueOnError: def.ContinueOnTestFailure,
			},
			{Stage: DeployStage{
				Runner: cfg.Runner,
				Config: deploy.Config{
					RepoURL:             cfg.Remote.URL,
					AppDir:              cfg.RemoteAppDir,
					CreateMissingBranch: def.Deploy.CreateMissingBranch,
					Restart:             restart,
				},
			}},
		},
	}, nil
}
