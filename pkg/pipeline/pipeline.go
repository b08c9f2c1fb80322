// Package pipeline is the straight-line deploy flow: checkout, build,
// test, deploy. Control flow is strictly sequential; the only
// permitted deviation is a stage flagged to continue on error, whose
// failure is recorded on the run but does not stop it.
package pipeline

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/deployferry/ferry/pkg/guid"
)

// Stage is a single unit of work in a run.
type Stage interface {
	Name() string
	Execute(ctx context.Context, rc *RunContext) error
}

// StageSpec pairs a stage with its failure policy.
type StageSpec struct {
	Stage Stage
	// ContinueOnError records the stage's failure on the run and
	// carries on. One of the built-in pipelines swallows test
	// failures this way; the other does not. Both behaviours are
	// intentional.
	ContinueOnError bool
}

// RunContext carries state handed from stage to stage within one run.
type RunContext struct {
	// ID for the resulting run record; one is generated if empty.
	ID       string
	Branch   string
	Revision string
	WorkDir  string
	Logger   log.Logger
}

type RunState string

const (
	RunQueued    RunState = "queued"
	RunRunning   RunState = "running"
	RunFailed    RunState = "failed"
	RunSucceeded RunState = "succeeded"
)

// StageResult is the outcome of one stage within a run.
type StageResult struct {
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	Err       string        `json:"error,omitempty"`
	Swallowed bool          `json:"swallowed,omitempty"`
}

// Run is the record of one pipeline execution.
type Run struct {
	ID        string        `json:"id"`
	Pipeline  string        `json:"pipeline"`
	Branch    string        `json:"branch"`
	Revision  string        `json:"revision,omitempty"`
	State     RunState      `json:"state"`
	Err       string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt,omitempty"`
	Stages    []StageResult `json:"stages"`
}

// Pipeline executes its stages in order.
type Pipeline struct {
	Name   string
	Stages []StageSpec

	// StageTimeout bounds each stage individually; zero means the
	// stage runs as long as the run's own context allows.
	StageTimeout time.Duration
}

// Execute runs the stages against the context given and returns the
// completed run record. It stops at the first error from a stage not
// flagged to continue.
func (p *Pipeline) Execute(ctx context.Context, rc *RunContext) *Run {
	id := rc.ID
	if id == "" {
		id = guid.New()
	}
	run := &Run{
		ID:        id,
		Pipeline:  p.Name,
		Branch:    rc.Branch,
		State:     RunRunning,
		StartedAt: time.Now(),
	}
	logger := log.With(rc.Logger, "run", run.ID, "pipeline", p.Name, "branch", rc.Branch)
	rc.Logger = logger

	for _, spec := range p.Stages {
		if err := ctx.Err(); err != nil {
			run.finish(RunFailed, err)
			return run
		}

		stageLogger := log.With(logger, "stage", spec.Stage.Name())
		begin := time.Now()
		stageCtx, cancel := ctx, func() {}
		if p.StageTimeout > 0 {
			stageCtx, cancel = context.WithTimeout(ctx, p.StageTimeout)
		}
		err := spec.Stage.Execute(stageCtx, rc)
		cancel()
		result := StageResult{
			Name:     spec.Stage.Name(),
			Duration: time.Since(begin),
		}
		observeStage(p.Name, spec.Stage.Name(), time.Since(begin), err)

		if err != nil {
			result.Err = err.Error()
			if !spec.ContinueOnError {
				run.Stages = append(run.Stages, result)
				stageLogger.Log("err", err)
				run.finish(RunFailed, err)
				return run
			}
			result.Swallowed = true
			stageLogger.Log("err", err, "swallowed", true)
		}
		run.Stages = append(run.Stages, result)
		run.Revision = rc.Revision
	}

	run.finish(RunSucceeded, nil)
	return run
}

func (r *Run) finish(state RunState, err error) {
	r.State = state
	r.EndedAt = time.Now()
	if err != nil {
		r.Err = err.Error()
	}
	observeRun(r.Pipeline, r.EndedAt.Sub(r.StartedAt), err)
}
