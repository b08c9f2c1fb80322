package daemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/deployferry/ferry/pkg/api"
	ferryerr "github.com/deployferry/ferry/pkg/errors"
	transport "github.com/deployferry/ferry/pkg/http"
	"github.com/deployferry/ferry/pkg/http/client"
	"github.com/deployferry/ferry/pkg/job"
	"github.com/deployferry/ferry/pkg/pipeline"
)

// fakeServer cans responses for the API surface, so the transport and
// the client can be tested against each other.
type fakeServer struct {
	runs []pipeline.Run
}

func (s *fakeServer) Ping(ctx context.Context) error { return nil }

func (s *fakeServer) Version(ctx context.Context) (string, error) { return "test-version", nil }

func (s *fakeServer) NotifyChange(ctx context.Context, ev api.PushEvent) (api.TriggerResult, error) {
	if ev.Ref == "" {
		return api.TriggerResult{}, &ferryerr.Error{
			Type: ferryerr.User,
			Help: "The push event carried no ref.",
			Err:  errors.New("no ref"),
		}
	}
	return api.TriggerResult{Jobs: []job.ID{"notified"}}, nil
}

func (s *fakeServer) TriggerRun(ctx context.Context, req api.RunRequest) (api.TriggerResult, error) {
	return api.TriggerResult{Jobs: []job.ID{"triggered"}}, nil
}

func (s *fakeServer) ListRuns(ctx context.Context) ([]pipeline.Run, error) {
	return s.runs, nil
}

func (s *fakeServer) RunStatus(ctx context.Context, id string) (pipeline.Run, error) {
	for _, run := range s.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return pipeline.Run{}, &ferryerr.Error{
		Type: ferryerr.Missing,
		Help: "No run with that ID is known.",
		Err:  errors.Errorf("run %q not found", id),
	}
}

func newTestClient(t *testing.T, s api.Server) (*client.Client, func()) {
	t.Helper()
	ts := httptest.NewServer(NewHandler(s, NewRouter()))
	return client.New(http.DefaultClient, transport.NewAPIRouter(), ts.URL), ts.Close
}

func TestRoundTrip(t *testing.T) {
	fake := &fakeServer{runs: []pipeline.Run{
		{ID: "r1", Pipeline: "push-deploy", Branch: "main", State: pipeline.RunSucceeded},
	}}
	c, cleanup := newTestClient(t, fake)
	defer cleanup()

	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatal(err)
	}

	v, err := c.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "test-version", v)

	result, err := c.NotifyChange(ctx, api.PushEvent{Ref: "refs/heads/main"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []job.ID{"notified"}, result.Jobs)

	result, err = c.TriggerRun(ctx, api.RunRequest{Branch: "main"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []job.ID{"triggered"}, result.Jobs)

	runs, err := c.ListRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(t, runs, 1)

	run, err := c.RunStatus(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, pipeline.RunSucceeded, run.State)
}

// API errors keep their type across the wire, so the CLI can turn
// them back into helpful messages.
func TestErrorsSurviveTransport(t *testing.T) {
	fake := &fakeServer{}
	c, cleanup := newTestClient(t, fake)
	defer cleanup()

	ctx := context.Background()

	_, err := c.RunStatus(ctx, "unknown")
	assert.True(t, ferryerr.IsMissing(err), "expected missing-resource error, got %v", err)

	_, err = c.NotifyChange(ctx, api.PushEvent{})
	ferr, ok := err.(*ferryerr.Error)
	if !ok {
		t.Fatalf("expected API error, got %T: %v", err, err)
	}
	assert.Equal(t, ferryerr.User, ferr.Type)
}
