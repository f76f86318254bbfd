package storage

import (
	"context"
	"errors"

	"github.com/terra-clan/practice-engine/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
)

// QuestionStore supplies questions for a new session. An empty result is
// not an error.
type QuestionStore interface {
	GetQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]*models.Question, error)
}

// Catalog browses the question bank
type Catalog interface {
	Topics(ctx context.Context) ([]models.Topic, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
}

// SessionStore persists session summaries. CreateSession returns the
// stored session carrying the store-assigned id.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) (*models.Session, error)
	UpdateSession(ctx context.Context, id string, update models.SessionUpdate) error
}

// SessionHistory reads back stored sessions
type SessionHistory interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, filters models.ListFilters) ([]*models.Session, error)
}

// SessionRepository is a full session backend
type SessionRepository interface {
	SessionStore
	SessionHistory

	Ping(ctx context.Context) error
	Close() error
}
