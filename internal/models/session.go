package models

import (
	"time"
)

// SessionState represents the current state of a practice session
type SessionState string

const (
	SessionSetup     SessionState = "setup"     // Configured, questions not loaded yet
	SessionActive    SessionState = "active"    // Timer ticking, questions open
	SessionPaused    SessionState = "paused"    // Timer stopped, executions may still finish
	SessionCompleted SessionState = "completed" // Questions exhausted or time up
	SessionAborted   SessionState = "aborted"   // Stopped by the candidate, incomplete
)

// IsTerminal returns true if the session is in a final state
func (s SessionState) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// IsRunning returns true if the session accepts question actions
func (s SessionState) IsRunning() bool {
	return s == SessionActive || s == SessionPaused
}

// CompletionReason records why a session ended
type CompletionReason string

const (
	ReasonExhausted CompletionReason = "exhausted"
	ReasonTimeUp    CompletionReason = "time_up"
	ReasonStopped   CompletionReason = "stopped"
)

// SessionConfig is what a candidate chooses before starting
type SessionConfig struct {
	Topic         string     `json:"topic"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimit     int        `json:"time_limit"` // minutes
	QuestionCount int        `json:"question_count"`
}

// SessionResult is the outcome of one submitted question. Immutable once appended.
type SessionResult struct {
	QuestionID  string    `json:"question_id"`
	Correct     bool      `json:"correct"`
	TimeSpent   int       `json:"time_spent"` // seconds from display to submit
	Attempts    int       `json:"attempts"`
	HintsUsed   int       `json:"hints_used"`
	Code        string    `json:"code"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Session represents a timed practice session
type Session struct {
	ID               string           `json:"id"`
	Topic            string           `json:"topic"`
	Difficulty       Difficulty       `json:"difficulty"`
	TimeLimit        int              `json:"time_limit"` // minutes
	QuestionCount    int              `json:"question_count"`
	QuestionIDs      []string         `json:"question_ids"`
	CurrentIndex     int              `json:"current_index"`
	State            SessionState     `json:"state"`
	CompletionReason CompletionReason `json:"completion_reason,omitempty"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	EndedAt          *time.Time       `json:"ended_at,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds"`
	Results          []SessionResult  `json:"results"`
	Score            int              `json:"score"`
	Accuracy         float64          `json:"accuracy"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// IsComplete is true for sessions that ended normally (not aborted)
func (s *Session) IsComplete() bool {
	return s.State == SessionCompleted
}

// HasResult reports whether questionID already has a recorded result
func (s *Session) HasResult(questionID string) bool {
	for _, r := range s.Results {
		if r.QuestionID == questionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand outside the state machine
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	c.Results = append([]SessionResult(nil), s.Results...)
	c.Warnings = append([]string(nil), s.Warnings...)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// SessionUpdate carries the fields written to the session store when a
// session is finalized
type SessionUpdate struct {
	State            SessionState     `json:"state"`
	CompletionReason CompletionReason `json:"completion_reason"`
	EndedAt          time.Time        `json:"ended_at"`
	Results          []SessionResult  `json:"results"`
	Score            int              `json:"score"`
	Accuracy         float64          `json:"accuracy"`
}

// ListFilters defines filters for listing stored sessions
type ListFilters struct {
	Topic  string
	State  SessionState
	Limit  int
	Offset int
}
