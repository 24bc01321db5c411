package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/alem-hub/academic-risk-hub/internal/domain/shared"
	"github.com/alem-hub/academic-risk-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// APIVersion is reported in every response.
const APIVersion = "v1"

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      newMeta(),
		RequestID: getRequestID(r.Context()),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeErrorWithDetails(w, r, status, code, message, "")
}

func writeErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	write(w, status, JSONResponse{
		Success:   false,
		Error:     &APIError{Code: code, Message: message, Details: details},
		Meta:      newMeta(),
		RequestID: getRequestID(r.Context()),
	})
}

func write(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newMeta() *ResponseMeta {
	return &ResponseMeta{Timestamp: time.Now().UTC(), Version: APIVersion}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps an application error onto a status code. Unknown
// errors are logged and reported without their text.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *shared.DomainError
	msg := "Ocurrió un error interno"
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		msg = domainErr.Message
	}

	switch {
	case errors.Is(err, shared.ErrInsufficientData):
		writeError(w, r, http.StatusBadRequest, "insufficient_data", msg)
	case shared.IsValidation(err):
		writeErrorWithDetails(w, r, http.StatusBadRequest, "validation_error", msg, err.Error())
	case shared.IsNotFound(err):
		writeError(w, r, http.StatusNotFound, "not_found", msg)
	case errors.Is(err, shared.ErrAlreadyRunning):
		writeError(w, r, http.StatusConflict, "already_running", msg)
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "timeout", "La operación tardó demasiado")
	case shared.IsExternalService(err):
		writeError(w, r, http.StatusServiceUnavailable, "service_unavailable", msg)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		logger.FromContext(r.Context()).Debug("request canceled", logger.Err(err))
	default:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "Ocurrió un error interno")
	}
}
