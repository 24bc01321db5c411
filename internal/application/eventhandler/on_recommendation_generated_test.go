package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

type spyCache struct {
	invalidated []int64
	err         error
}

func (s *spyCache) Invalidate(_ context.Context, id int64) error {
	s.invalidated = append(s.invalidated, id)
	return s.err
}

type spyMetrics struct {
	calls [][2]string
}

func (s *spyMetrics) RecordGenerated(source, level string) {
	s.calls = append(s.calls, [2]string{source, level})
}

// decodedEvent mimics an event that crossed the Redis bus.
type decodedEvent struct {
	payload   map[string]interface{}
	aggregate string
}

func (e decodedEvent) EventType() shared.EventType     { return shared.EventRecommendationGenerated }
func (e decodedEvent) OccurredAt() time.Time           { return time.Time{} }
func (e decodedEvent) AggregateID() string             { return e.aggregate }
func (e decodedEvent) Payload() map[string]interface{} { return e.payload }

func TestHandle_LocalEvent(t *testing.T) {
	cache := &spyCache{}
	metrics := &spyMetrics{}
	h := NewOnRecommendationGeneratedHandler(cache, metrics, nil)

	err := h.Handle(shared.NewRecommendationGeneratedEvent(42, 7, "Alto", "rules", "run-1"))
	require.NoError(t, err)

	assert.Equal(t, []int64{42}, cache.invalidated)
	assert.Equal(t, [][2]string{{"rules", "Alto"}}, metrics.calls)
}

func TestHandle_DecodedPayload(t *testing.T) {
	cache := &spyCache{}
	h := NewOnRecommendationGeneratedHandler(cache, nil, nil)

	err := h.Handle(decodedEvent{payload: map[string]interface{}{"student_id": float64(9)}})
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, cache.invalidated)
}

func TestHandle_FallsBackToAggregateID(t *testing.T) {
	cache := &spyCache{}
	h := NewOnRecommendationGeneratedHandler(cache, nil, nil)

	require.NoError(t, h.Handle(decodedEvent{payload: map[string]interface{}{}, aggregate: "15"}))
	assert.Equal(t, []int64{15}, cache.invalidated)

	err := h.Handle(decodedEvent{payload: map[string]interface{}{}, aggregate: "run-abc"})
	assert.Error(t, err)
}

func TestHandle_CacheError(t *testing.T) {
	cache := &spyCache{err: errors.New("redis down")}
	h := NewOnRecommendationGeneratedHandler(cache, nil, nil)

	err := h.Handle(shared.NewRecommendationGeneratedEvent(1, 1, "Bajo", "ai", ""))
	assert.EqualError(t, err, "redis down")
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	cache := &spyCache{}
	h := NewOnRecommendationGeneratedHandler(cache, nil, nil)

	require.NoError(t, h.Handle(shared.NewPipelineStartedEvent("run-1", 3)))
	assert.Empty(t, cache.invalidated)
}

func TestHandle_NoCache(t *testing.T) {
	h := NewOnRecommendationGeneratedHandler(nil, nil, nil)
	assert.NoError(t, h.Handle(shared.NewRecommendationGeneratedEvent(1, 1, "Bajo", "rules", "")))
}
