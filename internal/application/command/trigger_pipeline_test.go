package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

type blockingRunner struct {
	started chan string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 4), release: make(chan struct{})}
}

func (r *blockingRunner) Handle(ctx context.Context, cmd RunPipelineCommand) (*PipelineSummary, error) {
	r.started <- cmd.RunID
	select {
	case <-r.release:
		return &PipelineSummary{Status: PipelineSuccess, RunID: cmd.RunID, TotalStudents: 3}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestTrigger_RefusesOverlappingRuns(t *testing.T) {
	runner := newBlockingRunner()
	h := NewTriggerPipelineHandler(runner, time.Minute, nil)

	ack, err := h.Trigger()
	require.NoError(t, err)
	assert.Equal(t, TriggerProcessing, ack.Status)
	assert.NotEmpty(t, ack.RunID)

	assert.Equal(t, ack.RunID, <-runner.started)
	assert.True(t, h.Running())

	second, err := h.Trigger()
	assert.ErrorIs(t, err, shared.ErrPipelineAlreadyRunning)
	assert.Equal(t, TriggerAlreadyRunning, second.Status)

	_, err = h.Run(context.Background())
	assert.ErrorIs(t, err, shared.ErrAlreadyRunning)

	close(runner.release)
	require.NoError(t, h.Shutdown(context.Background()))
	assert.False(t, h.Running())

	last, lastErr := h.Last()
	require.NoError(t, lastErr)
	assert.Equal(t, 3, last.TotalStudents)
}

func TestTrigger_ShutdownCancelsRun(t *testing.T) {
	runner := newBlockingRunner()
	h := NewTriggerPipelineHandler(runner, time.Minute, nil)

	_, err := h.Trigger()
	require.NoError(t, err)
	<-runner.started

	require.NoError(t, h.Shutdown(context.Background()))
	_, lastErr := h.Last()
	assert.ErrorIs(t, lastErr, context.Canceled)
}

func TestTrigger_RunSynchronously(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	h := NewTriggerPipelineHandler(runner, time.Minute, nil)

	summary, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PipelineSuccess, summary.Status)
	assert.False(t, h.Running())
}

func TestTrigger_RefusedAfterShutdown(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	h := NewTriggerPipelineHandler(runner, time.Minute, nil)

	require.NoError(t, h.Shutdown(context.Background()))

	ack, err := h.Trigger()
	assert.ErrorIs(t, err, shared.ErrPipelineStopped)
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Empty(t, ack.RunID)

	_, err = h.Run(context.Background())
	assert.ErrorIs(t, err, shared.ErrPipelineStopped)

	assert.False(t, h.Running())
	assert.Empty(t, runner.started)
	require.NoError(t, h.Shutdown(context.Background()))
}

func TestTrigger_ShutdownWaitsForSynchronousRun(t *testing.T) {
	runner := newBlockingRunner()
	h := NewTriggerPipelineHandler(runner, time.Minute, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.Run(context.Background())
		done <- err
	}()
	<-runner.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Shutdown(ctx), context.DeadlineExceeded)

	close(runner.release)
	require.NoError(t, <-done)
	require.NoError(t, h.Shutdown(context.Background()))
}
