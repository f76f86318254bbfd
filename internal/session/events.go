package session

import (
	"time"

	"github.com/terra-clan/practice-engine/internal/models"
)

// EventType identifies what changed in a session
type EventType string

const (
	EventTick     EventType = "tick"
	EventState    EventType = "state"
	EventQuestion EventType = "question"
	EventResult   EventType = "result"
)

// Event is published to observers after every session change. Events are
// delivered outside the engine lock.
type Event struct {
	Type             EventType             `json:"type"`
	SessionID        string                `json:"session_id"`
	State            models.SessionState   `json:"state"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	QuestionIndex    int                   `json:"question_index"`
	Score            int                   `json:"score"`
	Result           *models.SessionResult `json:"result,omitempty"`
	Affordance       Affordance            `json:"affordance,omitempty"`
	Warnings         []string              `json:"warnings,omitempty"`
	At               time.Time             `json:"at"`
}

// Affordance tells the candidate what they may do after a submit
type Affordance string

const (
	AffordanceNextQuestion Affordance = "next_question"
	AffordanceEndSession   Affordance = "end_session"
)
