// Package http implements the REST API of the recommendation service:
// on-demand recommendations, pipeline triggers, analytics, health checks
// and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/alem-hub/academic-risk-hub/config"
	"github.com/alem-hub/academic-risk-hub/internal/application/command"
	"github.com/alem-hub/academic-risk-hub/internal/application/query"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// RecommendationService returns the stored or a freshly generated recommendation.
type RecommendationService interface {
	Handle(ctx context.Context, cmd command.GetOrGenerateCommand) (*command.RecommendationDTO, error)
}

// AIRecommendationService builds a prompt and asks the prose model for a rewrite.
type AIRecommendationService interface {
	Handle(ctx context.Context, cmd command.GenerateAICommand) (*command.AIRecommendationDTO, error)
}

// PipelineTrigger starts background runs and reports the last one.
type PipelineTrigger interface {
	Trigger() (command.TriggerAck, error)
	Running() bool
	Last() (*command.PipelineSummary, error)
}

// AnalyticsService summarizes stored results.
type AnalyticsService interface {
	Handle(ctx context.Context) (*query.AnalyticsSummaryDTO, error)
}

// InsightsService describes one student.
type InsightsService interface {
	Handle(ctx context.Context, studentID int64) (*query.StudentInsightsDTO, error)
}

// RequestMetrics records served requests.
type RequestMetrics interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Dependencies contains everything the handlers need. Nil services answer 501.
type Dependencies struct {
	Recommendations   RecommendationService
	AIRecommendations AIRecommendationService
	Pipeline          PipelineTrigger
	Analytics         AnalyticsService
	Insights          InsightsService

	Health         *HealthChecker
	Metrics        RequestMetrics
	MetricsHandler http.Handler

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP API server.
type Server struct {
	cfg        config.HTTPConfig
	deps       Dependencies
	httpServer *http.Server
	router     chi.Router
	logger     *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a server and registers all routes.
func NewServer(cfg config.HTTPConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = NewHealthChecker("")
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
	}
	s.router = s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)
	if s.deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.MetricsHandler)
	}

	r.Route("/api/v1/ml", func(r chi.Router) {
		if s.cfg.RateLimitRequests > 0 && s.cfg.RateLimitWindow > 0 {
			r.Use(httprate.Limit(s.cfg.RateLimitRequests, s.cfg.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Demasiadas solicitudes, intente más tarde")
				}),
			))
		}

		r.Get("/recommendations/{studentID}", s.handleGetRecommendation)
		r.Post("/generate-ai-recommendation/{studentID}", s.handleGenerateAIRecommendation)
		r.Post("/generate-recommendations", s.handleTriggerPipeline)
		r.Get("/generate-recommendations/status", s.handlePipelineStatus)
		r.Get("/analytics/summary", s.handleAnalyticsSummary)
		r.Get("/students/{studentID}/insights", s.handleStudentInsights)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "Ruta no encontrada")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "Método no permitido")
	})

	return r
}

// Handler returns the root handler, for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.cfg.Addr()))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns how long the server has been listening.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
