// Package api defines the surface the daemon exposes over HTTP, and
// the types that cross it.
package api

import (
	"context"

	"github.com/deployferry/ferry/pkg/job"
	"github.com/deployferry/ferry/pkg/pipeline"
)

// PushEvent is the webhook payload: a push to a branch of a
// repository. Only the ref and the repository URL matter; anything
// else the hook sender includes is ignored.
type PushEvent struct {
	Ref        string     `json:"ref"`
	Repository Repository `json:"repository"`
}

type Repository struct {
	URL string `json:"url"`
}

// RunRequest asks for a pipeline run outside of any webhook, e.g.,
// from the CLI.
type RunRequest struct {
	Pipeline string `json:"pipeline,omitempty"`
	Branch   string `json:"branch"`
}

// TriggerResult reports which jobs a trigger produced; a trigger can
// fan out to several pipelines when more than one branch gate matches.
type TriggerResult struct {
	Jobs []job.ID `json:"jobs"`
}

// Server is the API the daemon implements and the HTTP transport
// serves.
type Server interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	NotifyChange(ctx context.Context, ev PushEvent) (TriggerResult, error)
	TriggerRun(ctx context.Context, req RunRequest) (TriggerResult, error)
	ListRuns(ctx context.Context) ([]pipeline.Run, error)
	RunStatus(ctx context.Context, id string) (pipeline.Run, error)
}
