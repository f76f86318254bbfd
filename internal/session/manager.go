package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/terra-clan/practice-engine/internal/execution"
	"github.com/terra-clan/practice-engine/internal/metrics"
	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/storage"
)

// SnapshotCache keeps session snapshots readable outside this process
type SnapshotCache interface {
	Save(ctx context.Context, s *models.Session) error
	Load(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// ManagerOptions configures a Manager
type ManagerOptions struct {
	Questions storage.QuestionStore
	Sessions  storage.SessionStore
	History   storage.SessionHistory
	Strategy  execution.Strategy
	Cache     SnapshotCache

	Now            func() time.Time
	TickInterval   time.Duration
	PersistTimeout time.Duration
	CacheTimeout   time.Duration
}

// Manager owns the live engines of this process and fans their events
// out to subscribers.
type Manager struct {
	opts ManagerOptions

	mu      sync.RWMutex
	engines map[string]*Engine

	subsMu sync.Mutex
	subs   map[string]map[chan Event]struct{}
}

// NewManager creates a session manager
func NewManager(opts ManagerOptions) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = 2 * time.Second
	}
	return &Manager{
		opts:    opts,
		engines: make(map[string]*Engine),
		subs:    make(map[string]map[chan Event]struct{}),
	}
}

// Start creates and starts a session
func (m *Manager) Start(ctx context.Context, cfg models.SessionConfig) (*Engine, *models.Session, error) {
	e := NewEngine(cfg, Options{
		Questions:      m.opts.Questions,
		Sessions:       m.opts.Sessions,
		Strategy:       m.opts.Strategy,
		Now:            m.opts.Now,
		TickInterval:   m.opts.TickInterval,
		PersistTimeout: m.opts.PersistTimeout,
		Notify:         m.publish,
	})

	s, err := e.Start(ctx)
	if err != nil {
		return nil, nil, err
	}

	m.mu.Lock()
	m.engines[s.ID] = e
	count := len(m.engines)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	m.saveSnapshot(s)

	return e, s, nil
}

// Get returns the live engine for id
func (m *Manager) Get(id string) (*Engine, error) {
	m.mu.RLock()
	e, ok := m.engines[id]
	m.mu.RUnlock()

	if !ok {
		return nil, newError(KindNotFound, "get session", ErrSessionNotFound)
	}
	return e, nil
}

// Snapshot returns the session from the live engine, the snapshot cache or
// the session history, in that order.
func (m *Manager) Snapshot(ctx context.Context, id string) (*models.Session, error) {
	if e, err := m.Get(id); err == nil {
		return e.Snapshot(), nil
	}

	if m.opts.Cache != nil {
		s, err := m.opts.Cache.Load(ctx, id)
		if err == nil && s != nil {
			return s, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("failed to load session snapshot", "session_id", id, "error", err)
		}
	}

	if m.opts.History != nil {
		s, err := m.opts.History.GetSession(ctx, id)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	return nil, newError(KindNotFound, "get session", ErrSessionNotFound)
}

// List returns snapshots of all live sessions, newest first
func (m *Manager) List() []*models.Session {
	m.mu.RLock()
	sessions := make([]*models.Session, 0, len(m.engines))
	for _, e := range m.engines {
		sessions = append(sessions, e.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i].StartedAt, sessions[j].StartedAt
		return a != nil && b != nil && a.After(*b)
	})
	return sessions
}

// Subscribe returns a channel of events for session id. Slow subscribers
// miss events rather than stall the session. The returned func must be
// called to release the subscription.
func (m *Manager) Subscribe(id string) (<-chan Event, func(), error) {
	if _, err := m.Get(id); err != nil {
		return nil, nil, err
	}

	ch := make(chan Event, 32)

	m.subsMu.Lock()
	if m.subs[id] == nil {
		m.subs[id] = make(map[chan Event]struct{})
	}
	m.subs[id][ch] = struct{}{}
	m.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if set, ok := m.subs[id]; ok {
				if _, ok := set[ch]; ok {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(m.subs, id)
				}
			}
		})
	}
	return ch, cancel, nil
}

func (m *Manager) publish(ev Event) {
	m.subsMu.Lock()
	for ch := range m.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
	m.subsMu.Unlock()

	if ev.Type == EventTick || m.opts.Cache == nil {
		return
	}

	m.mu.RLock()
	e, ok := m.engines[ev.SessionID]
	m.mu.RUnlock()
	if ok {
		go m.saveSnapshot(e.Snapshot())
	}
}

func (m *Manager) saveSnapshot(s *models.Session) {
	if m.opts.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.CacheTimeout)
	defer cancel()

	if err := m.opts.Cache.Save(ctx, s); err != nil {
		slog.Warn("failed to cache session snapshot", "session_id", s.ID, "error", err)
	}
}

// Reap aborts running sessions idle for longer than maxIdle and forgets
// finished sessions idle for longer than retention. Finished snapshots stay
// available through the cache and history. It returns the number of
// sessions removed.
func (m *Manager) Reap(retention, maxIdle time.Duration) int {
	now := m.opts.Now()

	m.mu.RLock()
	engines := make(map[string]*Engine, len(m.engines))
	for id, e := range m.engines {
		engines[id] = e
	}
	m.mu.RUnlock()

	var expired []string
	for id, e := range engines {
		idle := now.Sub(e.LastActivity())
		state := e.State()

		switch {
		case state.IsTerminal() && idle >= retention:
			expired = append(expired, id)
		case state.IsRunning() && maxIdle > 0 && idle >= maxIdle:
			slog.Info("aborting idle session", "session_id", id, "idle", idle)
			if _, err := e.Stop(); err != nil {
				slog.Warn("failed to abort idle session", "session_id", id, "error", err)
			}
		}
	}

	if len(expired) == 0 {
		return 0
	}

	m.mu.Lock()
	for _, id := range expired {
		delete(m.engines, id)
	}
	count := len(m.engines)
	m.mu.Unlock()

	m.subsMu.Lock()
	for _, id := range expired {
		for ch := range m.subs[id] {
			close(ch)
		}
		delete(m.subs, id)
	}
	m.subsMu.Unlock()

	metrics.ActiveSessions.Set(float64(count))
	return len(expired)
}

// Shutdown aborts every running session so that summaries are persisted
// before the process exits.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	engines := make([]*Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	m.mu.RUnlock()

	for _, e := range engines {
		if e.State().IsRunning() {
			if _, err := e.Stop(); err != nil {
				slog.Warn("failed to stop session on shutdown", "session_id", e.ID(), "error", err)
			}
		}
	}
}
