package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/practice-engine/internal/session"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// stateCodes names the state errors a client is expected to branch on
var stateCodes = []struct {
	err  error
	code string
}{
	{session.ErrNotStarted, "not_started"},
	{session.ErrAlreadyStarted, "already_started"},
	{session.ErrSessionFinished, "session_finished"},
	{session.ErrSessionPaused, "session_paused"},
	{session.ErrExecutionInFlight, "execution_in_flight"},
	{session.ErrAlreadySubmitted, "already_submitted"},
	{session.ErrNotSubmitted, "not_submitted"},
	{session.ErrNoMoreQuestions, "no_more_questions"},
	{session.ErrNoMoreHints, "no_more_hints"},
	{session.ErrNoSolution, "no_solution"},
}

// respondEngineError maps engine error kinds to HTTP responses
func respondEngineError(w http.ResponseWriter, op string, err error) {
	switch session.KindOf(err) {
	case session.KindSetup:
		if errors.Is(err, session.ErrNoQuestions) {
			respondError(w, http.StatusUnprocessableEntity, "no_questions", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case session.KindState:
		for _, sc := range stateCodes {
			if errors.Is(err, sc.err) {
				respondError(w, http.StatusConflict, sc.code, sc.err.Error())
				return
			}
		}
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case session.KindNotFound:
		respondError(w, http.StatusNotFound, "not_found", "session not found")
	case session.KindDiscarded:
		respondError(w, http.StatusConflict, "result_discarded", "the question or session changed while the code was running")
	case session.KindExecution:
		slog.Error("execution unavailable", "op", op, "error", err)
		respondError(w, http.StatusServiceUnavailable, "execution_unavailable", "code execution is currently unavailable")
	default:
		slog.Error("request failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+op)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, p := range s.deps.Ready {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("dependency not ready", "dependency", name, "error", err)
			respondError(w, http.StatusServiceUnavailable, "not_ready", name+" not ready")
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Catalog handlers

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"topics": []interface{}{}, "total": 0})
		return
	}

	topics, err := s.deps.Catalog.Topics(r.Context())
	if err != nil {
		slog.Error("failed to list topics", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list topics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"topics": topics,
		"total":  len(topics),
	})
}
