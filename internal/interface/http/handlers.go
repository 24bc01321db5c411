package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alem-hub/academic-risk-hub/internal/application/command"
	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady answers 503 until every registered check passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	if !status.Healthy {
		writeErrorWithDetails(w, r, http.StatusServiceUnavailable, "not_ready", "Servicio no disponible", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMMENDATIONS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRecommendation returns the stored recommendation, generating one
// when none exists or ?regenerate=true is passed.
func (s *Server) handleGetRecommendation(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recommendations == nil {
		notImplemented(w, r)
		return
	}
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}

	regenerate := false
	if raw := r.URL.Query().Get("regenerate"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_parameter", "El parámetro regenerate debe ser booleano")
			return
		}
		regenerate = v
	}

	dto, err := s.deps.Recommendations.Handle(r.Context(), command.GetOrGenerateCommand{
		StudentID:  id,
		Regenerate: regenerate,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleGenerateAIRecommendation(w http.ResponseWriter, r *http.Request) {
	if s.deps.AIRecommendations == nil {
		notImplemented(w, r)
		return
	}
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}

	dto, err := s.deps.AIRecommendations.Handle(r.Context(), command.GenerateAICommand{StudentID: id})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// handleTriggerPipeline starts a background run and answers 202 at once.
func (s *Server) handleTriggerPipeline(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		notImplemented(w, r)
		return
	}

	ack, err := s.deps.Pipeline.Trigger()
	if err != nil {
		if errors.Is(err, shared.ErrAlreadyRunning) {
			writeJSON(w, r, http.StatusConflict, ack)
			return
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, ack)
}

type pipelineStatusResponse struct {
	Running bool                     `json:"running"`
	Last    *command.PipelineSummary `json:"last,omitempty"`
	Error   string                   `json:"last_error,omitempty"`
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pipeline == nil {
		notImplemented(w, r)
		return
	}

	resp := pipelineStatusResponse{Running: s.deps.Pipeline.Running()}
	last, err := s.deps.Pipeline.Last()
	resp.Last = last
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// ANALYTICS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analytics == nil {
		notImplemented(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	dto, err := s.deps.Analytics.Handle(ctx)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

func (s *Server) handleStudentInsights(w http.ResponseWriter, r *http.Request) {
	if s.deps.Insights == nil {
		notImplemented(w, r)
		return
	}
	id, ok := studentIDParam(w, r)
	if !ok {
		return
	}

	dto, err := s.deps.Insights.Handle(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// studentIDParam parses {studentID}; it writes a 400 and returns false on failure.
func studentIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "studentID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_student_id", "El identificador del estudiante debe ser un entero positivo")
		return 0, false
	}
	return id, true
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotImplemented, "not_implemented", "Función no disponible")
}
