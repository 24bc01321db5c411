package command

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/academic-risk-hub/internal/domain/features"
	"github.com/alem-hub/academic-risk-hub/internal/domain/recommendation"
	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

func newGetOrGenerate(t *testing.T) (*GetOrGenerateHandler, *memResults, *recordingPublisher) {
	t.Helper()
	students := seedPopulation()
	results := &memResults{}
	events := &recordingPublisher{}
	h := NewGetOrGenerateHandler(students, features.NewExtractor(students),
		risk.NewEstimator(risk.DefaultEstimatorConfig()), results, events, nil)
	return h, results, events
}

func TestGetOrGenerate_UnknownStudent(t *testing.T) {
	h, _, _ := newGetOrGenerate(t)

	_, err := h.Handle(context.Background(), GetOrGenerateCommand{StudentID: 404})
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestGetOrGenerate_InvalidID(t *testing.T) {
	h, _, _ := newGetOrGenerate(t)

	_, err := h.Handle(context.Background(), GetOrGenerateCommand{StudentID: 0})
	assert.True(t, shared.IsValidation(err))
}

func TestGetOrGenerate_GeneratesWhenMissing(t *testing.T) {
	h, results, events := newGetOrGenerate(t)

	dto, err := h.Handle(context.Background(), GetOrGenerateCommand{StudentID: 1})
	require.NoError(t, err)

	assert.True(t, dto.Generated)
	assert.Equal(t, "Alto", dto.RiskLevel)
	assert.Equal(t, string(recommendation.SourceRules), dto.Source)
	assert.Contains(t, dto.Text, "Matemática")
	assert.Len(t, results.forStudent(1), 1)
	assert.Equal(t, 1, events.count(shared.EventRecommendationGenerated))
}

func TestGetOrGenerate_ReturnsLatest(t *testing.T) {
	h, results, _ := newGetOrGenerate(t)
	ctx := context.Background()

	require.NoError(t, results.Save(ctx, recommendation.NewResult(3, risk.LevelMedium, "antigua", recommendation.SourceRules, "")))
	require.NoError(t, results.Save(ctx, recommendation.NewResult(3, risk.LevelLow, "nueva", recommendation.SourceAI, "")))

	dto, err := h.Handle(ctx, GetOrGenerateCommand{StudentID: 3})
	require.NoError(t, err)
	assert.False(t, dto.Generated)
	assert.Equal(t, "nueva", dto.Text)
	assert.Equal(t, "Bajo", dto.RiskLevel)
	assert.Len(t, results.forStudent(3), 2)
}

func TestGetOrGenerate_Regenerate(t *testing.T) {
	h, results, _ := newGetOrGenerate(t)
	ctx := context.Background()
	require.NoError(t, results.Save(ctx, recommendation.NewResult(13, risk.LevelHigh, "vieja", recommendation.SourceRules, "")))

	dto, err := h.Handle(ctx, GetOrGenerateCommand{StudentID: 13, Regenerate: true})
	require.NoError(t, err)
	assert.True(t, dto.Generated)
	assert.Equal(t, "Desconocido", dto.RiskLevel)
	assert.Contains(t, dto.Text, recommendation.InsufficientDataMarker)
	assert.Len(t, results.forStudent(13), 2)
}

// gatedResults blocks Latest until the gate is closed and then honours the
// context it was called with.
type gatedResults struct {
	*memResults
	entered chan struct{}
	gate    chan struct{}
	calls   atomic.Int32
}

func (g *gatedResults) Latest(ctx context.Context, studentID int64) (*recommendation.Result, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
	}
	<-g.gate
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.memResults.Latest(ctx, studentID)
}

func TestGetOrGenerate_CancelledCallerDoesNotFailOthers(t *testing.T) {
	students := seedPopulation()
	results := &gatedResults{memResults: &memResults{}, entered: make(chan struct{}), gate: make(chan struct{})}
	h := NewGetOrGenerateHandler(students, features.NewExtractor(students),
		risk.NewEstimator(risk.DefaultEstimatorConfig()), results, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := h.Handle(firstCtx, GetOrGenerateCommand{StudentID: 1})
		firstErr <- err
	}()
	<-results.entered

	type outcome struct {
		dto *RecommendationDTO
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		dto, err := h.Handle(context.Background(), GetOrGenerateCommand{StudentID: 1})
		second <- outcome{dto, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(results.gate)
	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.True(t, got.dto.Generated)
	case <-time.After(2 * time.Second):
		t.Fatal("joined caller did not return")
	}
	assert.Equal(t, int32(1), results.calls.Load())
	assert.Len(t, results.forStudent(1), 1)
}
