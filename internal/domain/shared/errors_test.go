package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	assert.True(t, IsNotFound(ErrStudentNotFound))
	assert.True(t, errors.Is(ErrNoModel, ErrEstimatorUnavailable))
	assert.True(t, errors.Is(ErrFeatureShape, ErrEstimatorUnavailable))
	assert.False(t, IsNotFound(ErrNoModel))

	wrapped := fmt.Errorf("handler: %w", ErrStudentNotFound)
	assert.True(t, IsNotFound(wrapped))
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError("pipeline", "LoadPopulation", ErrPopulationLoad, "failed to list students", cause)

	assert.True(t, errors.Is(err, ErrPopulationLoad))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "pipeline.LoadPopulation: failed to list students: connection refused", err.Error())
}

func TestIsExternalServiceAndRetryable(t *testing.T) {
	assert.True(t, IsExternalService(ErrProseUnavailable))
	assert.True(t, IsExternalService(ErrProseInvalidResponse))
	assert.True(t, IsRetryable(ErrProseTimeout))
	assert.True(t, IsRetryable(ErrProseRateLimited))
	assert.False(t, IsRetryable(ErrProseInvalidResponse))
	assert.True(t, IsValidation(ErrInvalidStudentID))
}

func TestValueObjects(t *testing.T) {
	assert.Equal(t, 0.0, RatioOf(3, 0))
	assert.Equal(t, 0.25, RatioOf(1, 4))
	assert.Equal(t, 0.67, Round2(2.0/3.0))
	assert.Equal(t, 0.0, Mean())
	assert.Equal(t, 2.0, Mean(1, 2, 3))
	assert.True(t, Ordinal(3).IsValid())
	assert.False(t, Ordinal(4).IsValid())
	assert.InDelta(t, 1.0/3.0, Ordinal(1).Unit(), 1e-9)
	assert.True(t, Ratio(0.5).IsValid())
	assert.False(t, Ratio(1.5).IsValid())
}
