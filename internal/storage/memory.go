package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/terra-clan/practice-engine/internal/models"
)

// MemoryStore is a SessionRepository kept in process memory. Used when no
// database is configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

// CreateSession stores a copy of s under a new id
func (m *MemoryStore) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	created := s.Clone()
	created.ID = uuid.New().String()
	if created.Results == nil {
		created.Results = []models.SessionResult{}
	}

	m.mu.Lock()
	m.sessions[created.ID] = created.Clone()
	m.mu.Unlock()

	return created, nil
}

// UpdateSession applies the final summary to a stored session
func (m *MemoryStore) UpdateSession(ctx context.Context, id string, u models.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	endedAt := u.EndedAt
	s.State = u.State
	s.CompletionReason = u.CompletionReason
	s.EndedAt = &endedAt
	s.Results = append([]models.SessionResult{}, u.Results...)
	s.Score = u.Score
	s.Accuracy = u.Accuracy
	return nil
}

// GetSession returns a copy of a stored session
func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// ListSessions returns stored sessions matching filters, newest first
func (m *MemoryStore) ListSessions(ctx context.Context, filters models.ListFilters) ([]*models.Session, error) {
	m.mu.RLock()
	var sessions []*models.Session
	for _, s := range m.sessions {
		if filters.Topic != "" && s.Topic != filters.Topic {
			continue
		}
		if filters.State != "" && s.State != filters.State {
			continue
		}
		sessions = append(sessions, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i].StartedAt, sessions[j].StartedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.After(*b)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(sessions) {
			return []*models.Session{}, nil
		}
		sessions = sessions[filters.Offset:]
	}
	if filters.Limit > 0 && len(sessions) > filters.Limit {
		sessions = sessions[:filters.Limit]
	}
	return sessions, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
