// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON RECOMMENDATION GENERATED HANDLER
// Сбрасывает закэшированный последний результат студента и считает
// сохранённые результаты.
//
// Событие может прийти из другого процесса (worker публикует через Redis),
// поэтому кэш API-сервера нельзя сбрасывать только в декораторе репозитория.
// ═══════════════════════════════════════════════════════════════════════════

// LatestResultCache - кэш последнего результата по студенту.
type LatestResultCache interface {
	Invalidate(ctx context.Context, studentID int64) error
}

// GeneratedMetrics - счётчик сохранённых результатов.
type GeneratedMetrics interface {
	RecordGenerated(source, level string)
}

// OnRecommendationGeneratedHandler обрабатывает EventRecommendationGenerated.
type OnRecommendationGeneratedHandler struct {
	cache   LatestResultCache
	metrics GeneratedMetrics
	logger  *logger.Logger
	timeout time.Duration
}

// NewOnRecommendationGeneratedHandler создаёт обработчик.
// cache и metrics могут быть nil.
func NewOnRecommendationGeneratedHandler(cache LatestResultCache, metrics GeneratedMetrics, log *logger.Logger) *OnRecommendationGeneratedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnRecommendationGeneratedHandler{
		cache:   cache,
		metrics: metrics,
		logger:  log.With(logger.Component("on_recommendation_generated")),
		timeout: 2 * time.Second,
	}
}

// Register подписывает обработчик на шину.
func (h *OnRecommendationGeneratedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventRecommendationGenerated, h.Handle)
}

// Handle реализует shared.EventHandler.
func (h *OnRecommendationGeneratedHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventRecommendationGenerated {
		return nil
	}

	payload := event.Payload()
	studentID, ok := studentIDFrom(event)
	if !ok {
		return fmt.Errorf("on_recommendation_generated: event without student id (aggregate %q)", event.AggregateID())
	}

	if h.metrics != nil {
		source, _ := payload["source"].(string)
		level, _ := payload["risk_level"].(string)
		h.metrics.RecordGenerated(source, level)
	}

	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.Invalidate(ctx, studentID); err != nil {
		h.logger.Warn("failed to invalidate cached result",
			logger.StudentID(studentID),
			logger.Err(err),
		)
		return err
	}

	h.logger.Debug("cached result invalidated", logger.StudentID(studentID))
	return nil
}

// studentIDFrom достаёт ID студента из события. После передачи через Redis
// полезная нагрузка декодирована из JSON, и число приходит как float64.
func studentIDFrom(event shared.Event) (int64, bool) {
	if e, ok := event.(shared.RecommendationGeneratedEvent); ok {
		return e.StudentID, true
	}

	switch v := event.Payload()["student_id"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}

	id, err := strconv.ParseInt(event.AggregateID(), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
