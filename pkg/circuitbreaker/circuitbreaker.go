// Package circuitbreaker wraps sony/gobreaker with the context-aware,
// option-based API used by the external clients of Academic Risk Hub.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateHalfOpen allows a limited number of trial requests.
	StateHalfOpen
	// StateOpen blocks all requests.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

var (
	// ErrCircuitOpen is returned when the circuit is open and requests are blocked.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when too many requests are made in half-open state.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Config holds circuit breaker configuration.
type Config struct {
	// Name identifies this circuit breaker (for logging/metrics).
	Name string

	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int

	// Timeout is how long to wait in open state before transitioning to half-open.
	Timeout time.Duration

	// MaxHalfOpenRequests is the maximum number of requests allowed in half-open state.
	MaxHalfOpenRequests int

	// Interval is the cyclic period of the closed state after which counts are cleared.
	// Zero keeps counts until the state changes.
	Interval time.Duration

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(name string, from, to State)

	// IsFailure determines if an error should be counted as a failure.
	// If nil, all non-nil errors except context cancellation are failures.
	IsFailure func(error) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option is a functional option for configuring the circuit breaker.
type Option func(*Config)

// WithFailureThreshold sets the number of consecutive failures that trip the breaker.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithTimeout sets the open-state timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithMaxHalfOpenRequests sets the half-open request budget.
func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

// WithOnStateChange registers a state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// WithIsFailure overrides failure classification.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsFailure = fn
	}
}

// Counts is a snapshot of the request counters of the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// CircuitBreaker guards calls to an unreliable dependency.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *CircuitBreaker {
	cfg := DefaultConfig(name)
	for _, opt := range opts {
		opt(&cfg)
	}

	isFailure := cfg.IsFailure
	if isFailure == nil {
		isFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled)
		}
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: uint32(cfg.MaxHalfOpenRequests),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isFailure(err)
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}

	return &CircuitBreaker{
		name: cfg.Name,
		cb:   gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Execute runs fn if the circuit allows it.
// ErrCircuitOpen or ErrTooManyRequests is returned when the call is rejected.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := cb.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return ErrCircuitOpen
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrTooManyRequests
	default:
		return err
	}
}

// ExecuteWithFallback runs fn and calls fallback when the circuit rejects the call.
func (cb *CircuitBreaker) ExecuteWithFallback(ctx context.Context, fn func(context.Context) error, fallback func(error) error) error {
	err := cb.Execute(ctx, fn)
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
		return fallback(err)
	}
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.cb.State())
}

// Counts returns the counters of the current generation.
func (cb *CircuitBreaker) Counts() Counts {
	c := cb.cb.Counts()
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether requests are currently blocked.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// ProseAPIBreaker returns a breaker for the generative-text API.
// Zero values fall back to 3 failures and a minute.
func ProseAPIBreaker(threshold int, timeout time.Duration, onStateChange func(name string, from, to State)) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return New("prose-api",
		WithFailureThreshold(threshold),
		WithTimeout(timeout),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
	)
}
