package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/internal/domain/student"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET OR GENERATE RECOMMENDATION
// Возвращает последний результат студента или строит новый без паттернов.
// Одновременные запросы по одному студенту объединяются.
// ══════════════════════════════════════════════════════════════════════════════

// generateTimeout ограничивает общую генерацию, к которой могут
// присоединиться несколько запросов.
const generateTimeout = 30 * time.Second

// GetOrGenerateCommand - параметры запроса.
type GetOrGenerateCommand struct {
	StudentID int64

	// Regenerate игнорирует сохранённый результат.
	Regenerate bool
}

// Validate проверяет команду.
func (c GetOrGenerateCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ErrInvalidStudentID
	}
	return nil
}

// RecommendationDTO - результат для внешнего слоя.
type RecommendationDTO struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"student_id"`
	RiskLevel string `json:"risk_level"`
	Text      string `json:"recommendation"`
	Source    string `json:"source"`
	RunID     string `json:"run_id,omitempty"`
	CreatedAt string `json:"created_at"`
	Generated bool   `json:"generated"`
}

// NewRecommendationDTO переводит результат в DTO.
func NewRecommendationDTO(r *recommendation.Result, generated bool) *RecommendationDTO {
	return &RecommendationDTO{
		ID:        r.ID,
		StudentID: r.StudentID,
		RiskLevel: r.RiskLevel.String(),
		Text:      r.Text,
		Source:    string(r.Source),
		RunID:     r.RunID,
		CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Generated: generated,
	}
}

// RecordExtractor строит запись признаков по ID студента.
type RecordExtractor interface {
	Extract(ctx context.Context, studentID int64) (*features.StudentFeatureRecord, error)
}

// GetOrGenerateHandler выполняет GetOrGenerateCommand.
type GetOrGenerateHandler struct {
	students  student.Repository
	extractor RecordExtractor
	estimator *risk.Estimator
	results   recommendation.Repository
	publisher shared.EventPublisher
	log       *logger.Logger

	group singleflight.Group
}

// NewGetOrGenerateHandler создаёт обработчик.
func NewGetOrGenerateHandler(
	students student.Repository,
	extractor RecordExtractor,
	estimator *risk.Estimator,
	results recommendation.Repository,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *GetOrGenerateHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GetOrGenerateHandler{
		students:  students,
		extractor: extractor,
		estimator: estimator,
		results:   results,
		publisher: publisher,
		log:       log.With(logger.Component("get_or_generate")),
	}
}

// Handle возвращает сохранённый или новый результат.
func (h *GetOrGenerateHandler) Handle(ctx context.Context, cmd GetOrGenerateCommand) (*RecommendationDTO, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Общая генерация не отменяется вместе с первым запросом.
	// Каждый вызывающий ждёт только свой ctx.
	key := strconv.FormatInt(cmd.StudentID, 10) + ":" + strconv.FormatBool(cmd.Regenerate)
	ch := h.group.DoChan(key, func() (interface{}, error) {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), generateTimeout)
		defer cancel()
		return h.handle(jobCtx, cmd)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*RecommendationDTO), nil
	}
}

func (h *GetOrGenerateHandler) handle(ctx context.Context, cmd GetOrGenerateCommand) (*RecommendationDTO, error) {
	if _, err := h.students.GetStudent(ctx, cmd.StudentID); err != nil {
		return nil, err
	}

	if !cmd.Regenerate {
		latest, err := h.results.Latest(ctx, cmd.StudentID)
		if err == nil {
			return NewRecommendationDTO(latest, false), nil
		}
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("get_or_generate: load latest: %w", err)
		}
	}

	rec, err := h.extractor.Extract(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_or_generate: extract features: %w", err)
	}

	level, strategy := h.estimator.Estimate(rec)
	text := recommendation.Compose(rec, level, nil)
	result := recommendation.NewResult(cmd.StudentID, level, text, recommendation.SourceRules, "")
	if err := h.results.Save(ctx, result); err != nil {
		return nil, fmt.Errorf("get_or_generate: save result: %w", err)
	}

	if err := h.publisher.Publish(shared.NewRecommendationGeneratedEvent(
		cmd.StudentID, result.ID, level.String(), string(result.Source), "")); err != nil {
		h.log.Warn("failed to publish event", logger.Err(err))
	}

	h.log.Info("recommendation generated",
		logger.StudentID(cmd.StudentID),
		logger.RiskLevel(level.String()),
		logger.String("strategy", string(strategy)),
	)
	return NewRecommendationDTO(result, true), nil
}
