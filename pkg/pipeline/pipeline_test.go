package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeStage struct {
	name string
	err  error
	ran  *[]string
}

func (s fakeStage) Name() string { return s.name }

func (s fakeStage) Execute(ctx context.Context, rc *RunContext) error {
	*s.ran = append(*s.ran, s.name)
	return s.err
}

func TestExecuteAllSucceed(t *testing.T) {
	var ran []string
	p := &Pipeline{
		Name: "p",
		Stages: []StageSpec{
			{Stage: fakeStage{name: "one", ran: &ran}},
			{Stage: fakeStage{name: "two", ran: &ran}},
		},
	}

	run := p.Execute(context.Background(), &RunContext{Branch: "main", Logger: log.NewNopLogger()})
	assert.Equal(t, RunSucceeded, run.State)
	assert.Equal(t, []string{"one", "two"}, ran)
	assert.Len(t, run.Stages, 2)
	assert.NotEmpty(t, run.ID)
}

func TestExecuteStopsOnFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	p := &Pipeline{
		Name: "p",
		Stages: []StageSpec{
			{Stage: fakeStage{name: "one", ran: &ran}},
			{Stage: fakeStage{name: "two", err: boom, ran: &ran}},
			{Stage: fakeStage{name: "three", ran: &ran}},
		},
	}

	run := p.Execute(context.Background(), &RunContext{Logger: log.NewNopLogger()})
	assert.Equal(t, RunFailed, run.State)
	assert.Equal(t, "boom", run.Err)
	// "three" must not run
	assert.Equal(t, []string{"one", "two"}, ran)
}

func TestExecuteContinueOnError(t *testing.T) {
	var ran []string
	boom := errors.New("tests failed")
	p := &Pipeline{
		Name: "p",
		Stages: []StageSpec{
			{Stage: fakeStage{name: "test", err: boom, ran: &ran}, ContinueOnError: true},
			{Stage: fakeStage{name: "deploy", ran: &ran}},
		},
	}

	run := p.Execute(context.Background(), &RunContext{Logger: log.NewNopLogger()})

	// The failure is recorded on the run but does not stop it.
	assert.Equal(t, RunSucceeded, run.State)
	assert.Equal(t, []string{"test", "deploy"}, ran)
	assert.True(t, run.Stages[0].Swallowed)
	assert.Equal(t, "tests failed", run.Stages[0].Err)
	assert.Empty(t, run.Err)
}

func TestExecuteHonoursGivenID(t *testing.T) {
	var ran []string
	p := &Pipeline{Name: "p", Stages: []StageSpec{{Stage: fakeStage{name: "only", ran: &ran}}}}
	run := p.Execute(context.Background(), &RunContext{ID: "fixed", Logger: log.NewNopLogger()})
	assert.Equal(t, "fixed", run.ID)
}

// blockingStage waits for its context to be cancelled and reports the
// context's error, the way a stuck shell-out would.
type blockingStage struct{}

func (blockingStage) Name() string { return "stuck" }

func (blockingStage) Execute(ctx context.Context, rc *RunContext) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestExecuteStageTimeout(t *testing.T) {
	var ran []string
	p := &Pipeline{
		Name:         "p",
		StageTimeout: 10 * time.Millisecond,
		Stages: []StageSpec{
			{Stage: blockingStage{}},
			{Stage: fakeStage{name: "after", ran: &ran}},
		},
	}

	done := make(chan *Run, 1)
	go func() {
		done <- p.Execute(context.Background(), &RunContext{Logger: log.NewNopLogger()})
	}()

	select {
	case run := <-done:
		assert.Equal(t, RunFailed, run.State)
		assert.Equal(t, context.DeadlineExceeded.Error(), run.Err)
		assert.Empty(t, ran)
	case <-time.After(5 * time.Second):
		t.Fatal("stage timeout did not cancel the stuck stage")
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	var ran []string
	p := &Pipeline{Name: "p", Stages: []StageSpec{{Stage: fakeStage{name: "only", ran: &ran}}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run := p.Execute(ctx, &RunContext{Logger: log.NewNopLogger()})
	assert.Equal(t, RunFailed, run.State)
	assert.Empty(t, ran)
}
