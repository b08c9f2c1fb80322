// Package daemon is the ferryd machinery: it accepts triggers, gates
// them per pipeline definition, and works through the resulting runs
// one at a time.
package daemon

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/deployferry/ferry/pkg/api"
	ferryerr "github.com/deployferry/ferry/pkg/errors"
	"github.com/deployferry/ferry/pkg/guid"
	"github.com/deployferry/ferry/pkg/job"
	"github.com/deployferry/ferry/pkg/pipeline"
)

const branchRefPrefix = "refs/heads/"

// Daemon implements api.Server. It owns the pipeline definitions, the
// job queue, and the record of past runs.
type Daemon struct {
	V           string
	Logger      log.Logger
	Definitions []pipeline.Definition
	Assemble    pipeline.AssembleConfig
	Jobs        *job.Queue

	// Limiter collapses bursts of webhook notifications; overlapping
	// pushes to the same branch don't need a run each.
	Limiter *rate.Limiter

	// Job statuses are tracked between enqueue and the run record
	// appearing in history.
	mu         sync.RWMutex
	jobStatus  map[job.ID]job.Status
	jobRequest map[job.ID]api.RunRequest
	history    []pipeline.Run
	historyCap int
}

// New constructs a daemon. historyCap bounds the in-memory run record;
// the oldest runs fall off.
func New(version string, logger log.Logger, defs []pipeline.Definition, assemble pipeline.AssembleConfig, jobs *job.Queue, limiter *rate.Limiter, historyCap int) *Daemon {
	if historyCap <= 0 {
		historyCap = 100
	}
	return &Daemon{
		V:           version,
		Logger:      logger,
		Definitions: defs,
		Assemble:    assemble,
		Jobs:        jobs,
		Limiter:     limiter,
		jobStatus:   map[job.ID]job.Status{},
		jobRequest:  map[job.ID]api.RunRequest{},
		historyCap:  historyCap,
	}
}

func (d *Daemon) Ping(ctx context.Context) error {
	return nil
}

func (d *Daemon) Version(ctx context.Context) (string, error) {
	return d.V, nil
}

// NotifyChange handles a webhook push event: resolve the branch,
// check the repository is the one we deploy, and enqueue a run for
// every pipeline whose branch gate matches.
func (d *Daemon) NotifyChange(ctx context.Context, ev api.PushEvent) (api.TriggerResult, error) {
	if !strings.HasPrefix(ev.Ref, branchRefPrefix) {
		// tags and other refs don't trigger deploys
		d.Logger.Log("ignored", "non-branch ref", "ref", ev.Ref)
		return api.TriggerResult{}, nil
	}
	branch := strings.TrimPrefix(ev.Ref, branchRefPrefix)

	if ev.Repository.URL != "" && !d.Assemble.Remote.Equivalent(ev.Repository.URL) {
		return api.TriggerResult{}, &ferryerr.Error{
			Type: ferryerr.User,
			Help: "The push event is for a repository this daemon is not configured to deploy.",
			Err:  errors.Errorf("unexpected repository %q", ev.Repository.URL),
		}
	}

	if d.Limiter != nil && !d.Limiter.Allow() {
		d.Logger.Log("ignored", "rate limited", "branch", branch)
		return api.TriggerResult{}, nil
	}

	var result api.TriggerResult
	for _, def := range d.Definitions {
		if !def.MatchesBranch(branch) {
			continue
		}
		result.Jobs = append(result.Jobs, d.enqueue(def, branch))
	}
	if len(result.Jobs) == 0 {
		d.Logger.Log("ignored", "no pipeline gates branch", "branch", branch)
	}
	return result, nil
}

// TriggerRun handles a manual trigger. Naming a pipeline bypasses its
// branch gate, since the operator asked for it explicitly.
func (d *Daemon) TriggerRun(ctx context.Context, req api.RunRequest) (api.TriggerResult, error) {
	if req.Branch == "" {
		return api.TriggerResult{}, &ferryerr.Error{
			Type: ferryerr.User,
			Help: "A branch is required to trigger a run.",
			Err:  errors.New("no branch supplied"),
		}
	}

	if req.Pipeline != "" {
		for _, def := range d.Definitions {
			if def.Name == req.Pipeline {
				return api.TriggerResult{Jobs: []job.ID{d.enqueue(def, req.Branch)}}, nil
			}
		}
		return api.TriggerResult{}, &ferryerr.Error{
			Type: ferryerr.Missing,
			Help: "No pipeline is defined with the name given; see `ferryctl runs` for what has run before.",
			Err:  errors.Errorf("pipeline %q not defined", req.Pipeline),
		}
	}

	var result api.TriggerResult
	for _, def := range d.Definitions {
		if def.MatchesBranch(req.Branch) {
			result.Jobs = append(result.Jobs, d.enqueue(def, req.Branch))
		}
	}
	return result, nil
}

func (d *Daemon) ListRuns(ctx context.Context) ([]pipeline.Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	runs := make([]pipeline.Run, len(d.history))
	copy(runs, d.history)
	return runs, nil
}

func (d *Daemon) RunStatus(ctx context.Context, id string) (pipeline.Run, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, run := range d.history {
		if run.ID == id {
			return run, nil
		}
	}
	if status, ok := d.jobStatus[job.ID(id)]; ok {
		req := d.jobRequest[job.ID(id)]
		return pipeline.Run{
			ID:       id,
			Pipeline: req.Pipeline,
			Branch:   req.Branch,
			State:    pipeline.RunState(status.StatusString),
		}, nil
	}
	return pipeline.Run{}, &ferryerr.Error{
		Type: ferryerr.Missing,
		Help: "No run with that ID is known; it may have fallen out of the run history.",
		Err:  errors.Errorf("run %q not found", id),
	}
}

// enqueue registers a queued job that assembles and executes the
// pipeline when the worker gets to it.
func (d *Daemon) enqueue(def pipeline.Definition, branch string) job.ID {
	id := job.ID(guid.New())

	d.mu.Lock()
	d.jobStatus[id] = job.Status{StatusString: job.StatusQueued}
	d.jobRequest[id] = api.RunRequest{Pipeline: def.Name, Branch: branch}
	d.mu.Unlock()

	do := func(logger log.Logger) error {
		pl, err := pipeline.Assemble(def, d.Assemble)
		if err != nil {
			now := time.Now()
			d.recordRun(pipeline.Run{
				ID:        string(id),
				Pipeline:  def.Name,
				Branch:    branch,
				State:     pipeline.RunFailed,
				Err:       err.Error(),
				StartedAt: now,
				EndedAt:   now,
			})
			return err
		}
		run := pl.Execute(context.Background(), &pipeline.RunContext{
			ID:     string(id),
			Branch: branch,
			Logger: logger,
		})
		d.recordRun(*run)
		if run.State == pipeline.RunFailed {
			return errors.New(run.Err)
		}
		return nil
	}

	d.Jobs.Enqueue(&job.Job{ID: id, Pipeline: def.Name, Branch: branch, Enqueued: time.Now(), Do: do})
	queueLength.Set(float64(d.Jobs.Len()))
	d.Logger.Log("queued", id, "pipeline", def.Name, "branch", branch)
	return id
}

// recordRun moves a finished run into history. The job tracking
// entries are dropped here; the history ring is the record from now
// on, so the maps stay bounded by the number of in-flight jobs.
func (d *Daemon) recordRun(run pipeline.Run) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, run)
	if len(d.history) > d.historyCap {
		d.history = d.history[len(d.history)-d.historyCap:]
	}
	delete(d.jobStatus, job.ID(run.ID))
	delete(d.jobRequest, job.ID(run.ID))
}

// setJobStatus updates a tracked job. A job already moved to history
// is no longer tracked, and the late status write must not revive it.
func (d *Daemon) setJobStatus(id job.ID, status job.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.jobStatus[id]; !ok {
		return
	}
	d.jobStatus[id] = status
}
