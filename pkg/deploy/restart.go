package deploy

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/deployferry/ferry/pkg/ssh"
)

// RestartStrategy is the final step of a deploy. Strategies differ on
// failure policy as well as mechanism, so the policy lives with the
// strategy rather than the state machine.
type RestartStrategy interface {
	Name() string
	Restart(ctx context.Context, r ssh.Runner, logger log.Logger) error
}

// ProcessRestart detaches a freshly started process. There is no
// duplicate-process guard and no termination of a prior instance;
// "restart" here means "start another".
type ProcessRestart struct {
	AppDir  string
	Command string
	LogFile string
}

func (p ProcessRestart) Name() string { return "process" }

func (p ProcessRestart) Restart(ctx context.Context, r ssh.Runner, logger log.Logger) error {
	logFile := p.LogFile
	if logFile == "" {
		logFile = "app.log"
	}
	cmd := fmt.Sprintf("cd %q && nohup %s > %q 2>&1 &", p.AppDir, p.Command, logFile)
	if _, err := r.Run(ctx, cmd); err != nil {
		return errors.Wrap(err, "starting application process")
	}
	logger.Log("restart", p.Name(), "command", p.Command)
	return nil
}

// ServiceRestart restarts a named service unit, but only if the unit
// is already registered with the service manager. A missing unit is
// worth a warning, not a failed run; the process is left in whatever
// state it was.
type ServiceRestart struct {
	Unit string
}

func (s ServiceRestart) Name() string { return "service" }

func (s ServiceRestart) Restart(ctx context.Context, r ssh.Runner, logger log.Logger) error {
	check := fmt.Sprintf("systemctl list-unit-files %q --no-legend | grep -q %q", s.Unit, s.Unit)
	if _, err := r.Run(ctx, check); err != nil {
		logger.Log("warning", fmt.Sprintf("Warning: %s not found. Ensure it's set up.", s.Unit))
		return nil
	}
	if _, err := r.Run(ctx, fmt.Sprintf("sudo systemctl restart %q", s.Unit)); err != nil {
		return errors.Wrapf(err, "restarting %s", s.Unit)
	}
	logger.Log("restart", s.Name(), "unit", s.Unit)
	return nil
}
