// Package deepseek implements a client for DeepSeek-compatible chat
// completion APIs. It rewrites recommendation prompts into prose for the
// on-demand AI recommendation.
package deepseek

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/pkg/circuitbreaker"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
	"github.com/alem-hub/academic-risk-hub/pkg/retry"
)

// SystemPrompt frames every completion.
const SystemPrompt = "Eres un tutor educativo experto. Redacta recomendaciones claras, " +
	"empáticas y accionables para estudiantes de primaria y secundaria, en español."

// maxErrorBody caps how much of an error body is read.
const maxErrorBody = 64 << 10

var (
	errEmptyCompletion = errors.New("completion has no content")
	errMalformed       = errors.New("malformed completion")
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// StatusError is a non-2xx answer of the API.
type StatusError struct {
	StatusCode int
	API        APIError
}

func (e *StatusError) Error() string {
	if e.API.Message != "" {
		return fmt.Sprintf("deepseek: status %d: %s", e.StatusCode, e.API.Message)
	}
	return fmt.Sprintf("deepseek: status %d", e.StatusCode)
}

// temporary reports whether the same request may succeed later.
func (e *StatusError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// CallMetrics receives the outcome of every Generate call.
type CallMetrics interface {
	RecordProseCall(outcome string, d time.Duration)
}

// Client calls the chat completion endpoint. It is safe for concurrent use.
type Client struct {
	cfg        config.ProseConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	metrics    CallMetrics
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetrier replaces the default retry policy.
func WithRetrier(r *retry.Retrier) Option {
	return func(c *Client) { c.retrier = r }
}

// WithMetrics records call outcomes.
func WithMetrics(m CallMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client from the prose settings.
func NewClient(cfg config.ProseConfig, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("deepseek"))

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if c.retrier == nil {
		c.retrier = retry.ProseAPIRetrier(cfg.MaxRetries+1,
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				c.logger.Warn("prose request failed, retrying",
					logger.Int("attempt", attempt),
					logger.Duration("delay", delay),
					logger.Err(err),
				)
			}),
		)
	}

	c.breaker = circuitbreaker.ProseAPIBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout,
		func(name string, from, to circuitbreaker.State) {
			c.logger.Warn("prose circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	)

	return c
}

// Generate sends prompt as the user turn and returns the first choice.
// Errors are mapped onto the shared prose errors.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	var text string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			out, err := c.complete(ctx, prompt)
			if err != nil {
				return err
			}
			text = out
			return nil
		})
	})

	c.record(err, time.Since(start))
	if err != nil {
		return "", c.mapError(err)
	}
	return text, nil
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil {
			statusErr.API = apiErr.Error
		}
		if statusErr.temporary() {
			return "", retry.Retryable(statusErr)
		}
		return "", statusErr
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(out.Choices) == 0 {
		return "", errEmptyCompletion
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyCompletion
	}

	c.logger.Debug("prose completion received",
		logger.Int("prompt_tokens", out.Usage.PromptTokens),
		logger.Int("completion_tokens", out.Usage.CompletionTokens),
	)
	return content, nil
}

func (c *Client) mapError(err error) error {
	var statusErr *StatusError
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", shared.ErrProseUnavailable, err)
	case errors.As(err, &statusErr):
		if statusErr.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %v", shared.ErrProseRateLimited, err)
		}
		return fmt.Errorf("%w: %v", shared.ErrProseUnavailable, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %v", shared.ErrProseTimeout, err)
	case errors.Is(err, errEmptyCompletion), errors.Is(err, errMalformed):
		return fmt.Errorf("%w: %v", shared.ErrProseInvalidResponse, err)
	default:
		return fmt.Errorf("%w: %v", shared.ErrProseUnavailable, err)
	}
}

func (c *Client) record(err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, circuitbreaker.ErrCircuitOpen), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		outcome = "circuit_open"
	default:
		outcome = "error"
	}
	c.metrics.RecordProseCall(outcome, d)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
