package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/application/command"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

type stubRunner struct {
	summary *command.PipelineSummary
	err     error
}

func (r *stubRunner) Run(context.Context) (*command.PipelineSummary, error) {
	return r.summary, r.err
}

func TestGenerateRecommendationsJob_Run(t *testing.T) {
	job := NewGenerateRecommendationsJob(&stubRunner{summary: &command.PipelineSummary{
		Status:                   command.PipelineSuccess,
		RunID:                    "run-1",
		TotalStudents:            12,
		RecommendationsGenerated: 11,
		Failed:                   1,
		PatternsFound:            4,
	}}, nil)

	assert.Nil(t, job.LastStats())
	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.False(t, stats.Skipped)
	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, 12, stats.TotalStudents)
	assert.Equal(t, 11, stats.Generated)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 4, stats.PatternsFound)
	assert.Equal(t, "generate_recommendations", job.Name())
}

func TestGenerateRecommendationsJob_SkipsWhenRunning(t *testing.T) {
	job := NewGenerateRecommendationsJob(&stubRunner{err: shared.ErrPipelineAlreadyRunning}, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.True(t, job.LastStats().Skipped)
}

func TestGenerateRecommendationsJob_SkipsWhenStopped(t *testing.T) {
	job := NewGenerateRecommendationsJob(&stubRunner{err: shared.ErrPipelineStopped}, nil)
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, job.LastStats().Skipped)
}

func TestGenerateRecommendationsJob_Failure(t *testing.T) {
	boom := errors.New("population load failed")
	job := NewGenerateRecommendationsJob(&stubRunner{
		summary: &command.PipelineSummary{Status: command.PipelineFailed, RunID: "run-2"},
		err:     boom,
	}, nil)

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, command.PipelineFailed, job.LastStats().Status)
}
