// Package command contains write operations (CQRS - Commands).
// Commands run the scoring pipeline and append recommendation results.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/patterns"
	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN PIPELINE COMMAND
// Полный прогон: загрузка популяции, признаки, обучение, поиск паттернов и
// последовательная обработка каждого студента.
// ══════════════════════════════════════════════════════════════════════════════

// RunPipelineCommand - параметры прогона.
type RunPipelineCommand struct {
	// RunID - идентификатор прогона; пустой заменяется новым UUID.
	RunID string
}

// PipelineStatus - итог прогона.
type PipelineStatus string

const (
	PipelineSuccess PipelineStatus = "success"
	PipelineFailed  PipelineStatus = "error"
)

// PipelineSummary - итоговые счётчики прогона.
type PipelineSummary struct {
	Status                   PipelineStatus       `json:"status"`
	RunID                    string               `json:"run_id"`
	TotalStudents            int                  `json:"total_students"`
	RecommendationsGenerated int                  `json:"recommendations_generated"`
	PatternsFound            int                  `json:"patterns_found"`
	Failed                   int                  `json:"failed"`
	Training                 *risk.TrainingReport `json:"training,omitempty"`
	StartedAt                time.Time            `json:"started_at"`
	Duration                 time.Duration        `json:"duration"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// FeatureExtractor строит запись признаков по студенту.
type FeatureExtractor interface {
	ExtractStudent(ctx context.Context, st *student.Student) (*features.StudentFeatureRecord, error)
}

// FeatureGate проверяет флаги функций.
type FeatureGate interface {
	IsEnabled(featureName string, ctx *config.FeatureContext) bool
}

// PipelineMetrics принимает метрики прогона.
type PipelineMetrics interface {
	RecordRun(status string, total, generated, failed int, d time.Duration)
	RecordTraining(samples int, accuracy float64, trained bool)
	RecordPatterns(rules int)
	RecordEstimate(level risk.Level, strategy risk.Strategy)
}

// NopMetrics drops every measurement.
type NopMetrics struct{}

func (NopMetrics) RecordRun(string, int, int, int, time.Duration) {}
func (NopMetrics) RecordTraining(int, float64, bool)              {}
func (NopMetrics) RecordPatterns(int)                             {}
func (NopMetrics) RecordEstimate(risk.Level, risk.Strategy)       {}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RunPipelineHandler выполняет RunPipelineCommand.
type RunPipelineHandler struct {
	students  student.Repository
	extractor FeatureExtractor
	estimator *risk.Estimator
	miner     *patterns.Miner
	results   recommendation.Repository
	publisher shared.EventPublisher
	flags     FeatureGate
	metrics   PipelineMetrics
	log       *logger.Logger
}

// RunPipelineDeps - зависимости обработчика. Publisher, Metrics и Logger необязательны.
type RunPipelineDeps struct {
	Students  student.Repository
	Extractor FeatureExtractor
	Estimator *risk.Estimator
	Miner     *patterns.Miner
	Results   recommendation.Repository
	Publisher shared.EventPublisher
	Flags     FeatureGate
	Metrics   PipelineMetrics
	Logger    *logger.Logger
}

// NewRunPipelineHandler создаёт обработчик.
func NewRunPipelineHandler(d RunPipelineDeps) *RunPipelineHandler {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = NopMetrics{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	if d.Flags == nil {
		d.Flags = config.LoadFeatureFlags("")
	}
	return &RunPipelineHandler{
		students:  d.Students,
		extractor: d.Extractor,
		estimator: d.Estimator,
		miner:     d.Miner,
		results:   d.Results,
		publisher: d.Publisher,
		flags:     d.Flags,
		metrics:   d.Metrics,
		log:       d.Logger.With(logger.Component("pipeline")),
	}
}

// Handle выполняет прогон. Ошибка возвращается только если не удалось
// загрузить популяцию или отменён контекст.
func (h *RunPipelineHandler) Handle(ctx context.Context, cmd RunPipelineCommand) (*PipelineSummary, error) {
	runID := cmd.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := h.log.With(logger.RunID(runID))

	summary := &PipelineSummary{
		Status:    PipelineSuccess,
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}

	// 1. Load population
	population, err := h.students.ListStudents(ctx)
	if err != nil {
		h.metrics.RecordRun(string(PipelineFailed), 0, 0, 0, time.Since(summary.StartedAt))
		log.Error("failed to load population", logger.Err(err))
		return nil, shared.WrapError("pipeline", "LoadPopulation", shared.ErrPopulationLoad, "failed to load students", err)
	}
	summary.TotalStudents = len(population)
	h.publish(shared.NewPipelineStartedEvent(runID, len(population)))
	log.Info("pipeline started", logger.Int("students", len(population)))

	// 2. Extract features
	records := make([]*features.StudentFeatureRecord, len(population))
	extracted := make([]*features.StudentFeatureRecord, 0, len(population))
	for i, st := range population {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		rec, err := h.extractor.ExtractStudent(ctx, st)
		if err != nil {
			log.Warn("feature extraction failed", logger.StudentID(st.ID), logger.Err(err))
			continue
		}
		records[i] = rec
		extracted = append(extracted, rec)
	}

	// 3. Train or skip
	summary.Training = h.train(extracted, log)

	// 4. Mine patterns
	rules := h.mine(extracted, runID, log)
	summary.PatternsFound = len(rules)

	// 5. Per student: estimate, compose, persist
	for i, st := range population {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		if err := h.processStudent(ctx, st, records[i], rules, runID); err != nil {
			summary.Failed++
			log.Error("failed to generate recommendation", logger.StudentID(st.ID), logger.Err(err))
			h.saveFailure(ctx, st.ID, runID, log)
			continue
		}
		summary.RecommendationsGenerated++
	}

	summary.Duration = time.Since(summary.StartedAt)
	h.metrics.RecordRun(string(summary.Status), summary.TotalStudents, summary.RecommendationsGenerated, summary.Failed, summary.Duration)
	h.publish(shared.NewPipelineCompletedEvent(runID, summary.TotalStudents, summary.RecommendationsGenerated,
		summary.PatternsFound, summary.Failed, summary.Duration))

	log.Info("pipeline completed",
		logger.Int("generated", summary.RecommendationsGenerated),
		logger.Int("failed", summary.Failed),
		logger.Int("patterns", summary.PatternsFound),
		logger.Latency(summary.Duration),
	)
	return summary, nil
}

func (h *RunPipelineHandler) train(records []*features.StudentFeatureRecord, log *logger.Logger) *risk.TrainingReport {
	if !h.flags.IsEnabled(config.FeatureLearnedEstimator, nil) {
		h.estimator.Reset()
		log.Info("learned estimator disabled, using heuristic")
		return nil
	}

	report, err := h.estimator.Train(records)
	switch {
	case errors.Is(err, shared.ErrNotEnoughSamples):
		log.Info("not enough labelled records, using heuristic",
			logger.Int("samples", report.Samples))
	case err != nil:
		log.Warn("estimator training failed, using heuristic", logger.Err(err))
	default:
		log.Info("estimator trained",
			logger.Int("samples", report.Samples),
			logger.Int("test_size", report.TestSize),
			logger.Float64("accuracy", report.Accuracy),
		)
	}
	h.metrics.RecordTraining(report.Samples, report.Accuracy, err == nil)
	return &report
}

func (h *RunPipelineHandler) mine(records []*features.StudentFeatureRecord, runID string, log *logger.Logger) []patterns.Rule {
	if !h.flags.IsEnabled(config.FeaturePatternMining, nil) {
		return nil
	}
	transactions := patterns.Transactions(records)
	rules := h.miner.MineTransactions(transactions)

	h.metrics.RecordPatterns(len(rules))
	h.publish(shared.NewPatternsMinedEvent(runID, len(transactions), len(rules)))
	log.Info("patterns mined", logger.Int("transactions", len(transactions)), logger.Int("rules", len(rules)))
	return rules
}

func (h *RunPipelineHandler) processStudent(
	ctx context.Context,
	st *student.Student,
	rec *features.StudentFeatureRecord,
	rules []patterns.Rule,
	runID string,
) error {
	if rec == nil {
		return fmt.Errorf("no feature record for student %d", st.ID)
	}

	level, strategy := h.estimator.Estimate(rec)
	h.metrics.RecordEstimate(level, strategy)

	text := recommendation.Compose(rec, level, rules)
	result := recommendation.NewResult(st.ID, level, text, recommendation.SourceRules, runID)
	if err := h.results.Save(ctx, result); err != nil {
		return fmt.Errorf("save result: %w", err)
	}

	h.publish(shared.NewRecommendationGeneratedEvent(st.ID, result.ID, level.String(), string(result.Source), runID))
	return nil
}

func (h *RunPipelineHandler) saveFailure(ctx context.Context, studentID int64, runID string, log *logger.Logger) {
	marker := recommendation.NewFailure(studentID, runID)
	if err := h.results.Save(ctx, marker); err != nil {
		log.Error("failed to store error marker", logger.StudentID(studentID), logger.Err(err))
	}
}

func (h *RunPipelineHandler) publish(event shared.Event) {
	if err := h.publisher.Publish(event); err != nil {
		h.log.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
