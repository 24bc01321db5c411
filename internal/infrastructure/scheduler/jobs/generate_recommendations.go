// Package jobs contains the scheduled jobs of the worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alem-hub/academic-risk-hub/internal/application/command"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE RECOMMENDATIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PipelineRunner runs one recommendation pass synchronously.
// command.TriggerPipelineHandler satisfies it.
type PipelineRunner interface {
	Run(ctx context.Context) (*command.PipelineSummary, error)
}

// GenerateRecommendationsJob re-scores every student and stores fresh
// recommendations. A run that finds another pass in progress is skipped.
type GenerateRecommendationsJob struct {
	runner PipelineRunner
	logger *logger.Logger

	lastStats atomic.Value // *GenerateStats
}

// GenerateStats describes the last run of the job.
type GenerateStats struct {
	StartedAt     time.Time
	Duration      time.Duration
	Skipped       bool
	RunID         string
	Status        command.PipelineStatus
	TotalStudents int
	Generated     int
	Failed        int
	PatternsFound int
}

// NewGenerateRecommendationsJob creates the job.
func NewGenerateRecommendationsJob(runner PipelineRunner, log *logger.Logger) *GenerateRecommendationsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &GenerateRecommendationsJob{
		runner: runner,
		logger: log.With(logger.Component("job"), logger.String("job", "generate_recommendations")),
	}
}

// Name returns the job name.
func (j *GenerateRecommendationsJob) Name() string {
	return "generate_recommendations"
}

// Description returns a human-readable description.
func (j *GenerateRecommendationsJob) Description() string {
	return "Scores every student and stores a fresh recommendation for each"
}

// Run executes one pipeline pass.
func (j *GenerateRecommendationsJob) Run(ctx context.Context) error {
	stats := &GenerateStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	summary, err := j.runner.Run(ctx)
	if errors.Is(err, shared.ErrPipelineAlreadyRunning) {
		stats.Skipped = true
		j.logger.Info("pipeline already running, skipping scheduled pass")
		return nil
	}
	if errors.Is(err, shared.ErrPipelineStopped) {
		stats.Skipped = true
		j.logger.Info("pipeline is shutting down, skipping scheduled pass")
		return nil
	}
	if summary != nil {
		stats.RunID = summary.RunID
		stats.Status = summary.Status
		stats.TotalStudents = summary.TotalStudents
		stats.Generated = summary.RecommendationsGenerated
		stats.Failed = summary.Failed
		stats.PatternsFound = summary.PatternsFound
	}
	if err != nil {
		return fmt.Errorf("generate recommendations: %w", err)
	}

	j.logger.Info("scheduled pass finished",
		logger.RunID(stats.RunID),
		logger.Int("students", stats.TotalStudents),
		logger.Int("generated", stats.Generated),
		logger.Int("failed", stats.Failed),
	)
	return nil
}

// LastStats returns statistics of the last run, or nil before the first one.
func (j *GenerateRecommendationsJob) LastStats() *GenerateStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*GenerateStats)
	}
	return nil
}
