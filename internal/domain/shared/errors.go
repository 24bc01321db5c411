// Package shared contains the error kinds and small value objects used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, matched with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyRunning   = errors.New("already running")
	ErrInsufficientData = errors.New("insufficient data")

	// Pipeline errors
	ErrEstimatorUnavailable = errors.New("estimator unavailable")
	ErrPopulationLoad       = errors.New("population load failed")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "student", "risk", "recommendation"
	Op      string // operation that failed, e.g. "Extract", "Predict"
	Kind    error  // base error kind for errors.Is()
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching on both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student errors
var (
	ErrStudentNotFound  = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrInvalidStudentID = NewDomainError("student", "Validate", ErrInvalidID, "invalid student ID")
)

// Risk errors
var (
	ErrNoModel          = NewDomainError("risk", "Predict", ErrEstimatorUnavailable, "model is not trained")
	ErrFeatureShape     = NewDomainError("risk", "Predict", ErrEstimatorUnavailable, "feature vector shape mismatch")
	ErrNotEnoughSamples = NewDomainError("risk", "Train", ErrEstimatorUnavailable, "not enough labelled records")
)

// Recommendation errors
var (
	ErrRecommendationNotFound = NewDomainError("recommendation", "Find", ErrNotFound, "recommendation not found")
	ErrNoStudentData          = NewDomainError("recommendation", "Generate", ErrInsufficientData, "student has neither grades nor survey")
	ErrPipelineAlreadyRunning = NewDomainError("pipeline", "Start", ErrAlreadyRunning, "a pipeline run is already in progress")
	ErrPipelineStopped        = NewDomainError("pipeline", "Start", ErrServiceUnavailable, "pipeline is shutting down")
)

// External service errors
var (
	ErrProseUnavailable     = NewDomainError("prose", "Request", ErrServiceUnavailable, "prose API is unavailable")
	ErrProseRateLimited     = NewDomainError("prose", "Request", ErrRateLimited, "prose API rate limit exceeded")
	ErrProseTimeout         = NewDomainError("prose", "Request", ErrTimeout, "prose API request timeout")
	ErrProseInvalidResponse = NewDomainError("prose", "Parse", ErrExternalService, "invalid response from prose API")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrExternalService) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited)
}
