package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/session"
)

// StartSessionRequest is the body of POST /sessions
type StartSessionRequest struct {
	Topic         string `json:"topic"`
	Difficulty    string `json:"difficulty"`
	TimeLimit     int    `json:"time_limit"`
	QuestionCount int    `json:"question_count"`
}

// CodeRequest is the body of run and submit
type CodeRequest struct {
	Code string `json:"code"`
}

// StartSessionResponse is returned when a session starts
type StartSessionResponse struct {
	Session  *models.Session      `json:"session"`
	Question *models.QuestionView `json:"question"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cfg := models.SessionConfig{
		Topic:         strings.TrimSpace(req.Topic),
		TimeLimit:     req.TimeLimit,
		QuestionCount: req.QuestionCount,
	}
	if req.Difficulty != "" {
		cfg.Difficulty, _ = models.ParseDifficulty(req.Difficulty)
	}

	e, snap, err := s.deps.Sessions.Start(r.Context(), cfg)
	if err != nil {
		respondEngineError(w, "start session", err)
		return
	}

	q, err := e.CurrentQuestion()
	if err != nil {
		respondEngineError(w, "start session", err)
		return
	}

	respondJSON(w, http.StatusCreated, StartSessionResponse{Session: snap, Question: q})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	filters := models.ListFilters{
		Topic: r.URL.Query().Get("topic"),
		State: models.SessionState(r.URL.Query().Get("state")),
		Limit: 50,
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}

	var sessions []*models.Session
	if s.deps.History != nil {
		var err error
		sessions, err = s.deps.History.ListSessions(r.Context(), filters)
		if err != nil {
			respondEngineError(w, "list sessions", err)
			return
		}
	} else {
		sessions = filterLive(s.deps.Sessions.List(), filters)
	}

	if sessions == nil {
		sessions = []*models.Session{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// filterLive applies list filters to live session snapshots
func filterLive(all []*models.Session, f models.ListFilters) []*models.Session {
	var out []*models.Session
	for _, s := range all {
		if f.Topic != "" && s.Topic != f.Topic {
			continue
		}
		if f.State != "" && s.State != f.State {
			continue
		}
		out = append(out, s)
	}
	if f.Offset >= len(out) {
		return nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Sessions.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, "get session", err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// engine resolves the live engine named in the URL or writes an error
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*session.Engine, bool) {
	e, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, "get session", err)
		return nil, false
	}
	return e, true
}

func decodeCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req CodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return "", false
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "code is required")
		return "", false
	}
	return req.Code, true
}

func (s *Server) handleCurrentQuestion(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}

	q, err := e.CurrentQuestion()
	if err != nil {
		respondEngineError(w, "get question", err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleRunCode(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}

	out, err := e.RunCode(r.Context(), code)
	if err != nil {
		respondEngineError(w, "run code", err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	code, ok := decodeCode(w, r)
	if !ok {
		return
	}

	outcome, err := e.SubmitSolution(r.Context(), code)
	if err != nil {
		respondEngineError(w, "submit solution", err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}

	q, err := e.NextQuestion()
	if err != nil {
		respondEngineError(w, "next question", err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, "pause session", (*session.Engine).Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, "resume session", (*session.Engine).Resume)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, "end session", (*session.Engine).EndSession)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, "stop session", (*session.Engine).Stop)
}

// sessionAction runs a state transition that returns the new snapshot
func (s *Server) sessionAction(w http.ResponseWriter, r *http.Request, op string, action func(*session.Engine) (*models.Session, error)) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}

	snap, err := action(e)
	if err != nil {
		respondEngineError(w, op, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRevealHint(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}

	hint, err := e.RevealHint()
	if err != nil {
		respondEngineError(w, "reveal hint", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"hint": hint})
}

func (s *Server) handleSolution(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}

	solution, err := e.Solution()
	if err != nil {
		respondEngineError(w, "get solution", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"solution": solution})
}
