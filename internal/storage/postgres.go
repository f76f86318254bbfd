package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/practice-engine/internal/models"
)

// PostgresSessionStore implements SessionRepository using PostgreSQL
type PostgresSessionStore struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresSessionStore creates a pooled PostgreSQL session store
func NewPostgresSessionStore(ctx context.Context, cfg PostgresConfig) (*PostgresSessionStore, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostgresSessionStore{pool: pool}, nil
}

// NewPool opens and verifies a connection pool
func NewPool(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Pool exposes the underlying pool for migrations
func (r *PostgresSessionStore) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresSessionStore) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresSessionStore) Close() error {
	r.pool.Close()
	return nil
}

// CreateSession inserts a new session and returns it with the generated id
func (r *PostgresSessionStore) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO practice_sessions (topic, difficulty, time_limit, question_count, question_ids, state, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	created := s.Clone()
	err := r.pool.QueryRow(ctx, query,
		s.Topic,
		string(s.Difficulty),
		s.TimeLimit,
		s.QuestionCount,
		s.QuestionIDs,
		string(s.State),
		nullTime(s.StartedAt),
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return created, nil
}

// UpdateSession writes the final summary and replaces the stored results
func (r *PostgresSessionStore) UpdateSession(ctx context.Context, id string, u models.SessionUpdate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE practice_sessions
		SET state = $2, completion_reason = $3, ended_at = $4, score = $5, accuracy = $6
		WHERE id = $1
	`
	result, err := tx.Exec(ctx, query,
		id,
		string(u.State),
		string(u.CompletionReason),
		u.EndedAt,
		u.Score,
		u.Accuracy,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM practice_results WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("failed to clear results: %w", err)
	}

	batch := &pgx.Batch{}
	for i, res := range u.Results {
		batch.Queue(`
			INSERT INTO practice_results (session_id, position, question_id, correct, time_spent, attempts, hints_used, code, submitted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, id, i, res.QuestionID, res.Correct, res.TimeSpent, res.Attempts, res.HintsUsed, res.Code, res.SubmittedAt)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session update: %w", err)
	}
	return nil
}

const sessionColumns = `id, topic, difficulty, time_limit, question_count, question_ids, state, completion_reason, started_at, ended_at, score, accuracy`

// GetSession retrieves a stored session with its results
func (r *PostgresSessionStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM practice_sessions WHERE id = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if err := r.attachResults(ctx, []*models.Session{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessions returns stored sessions matching filters, newest first
func (r *PostgresSessionStore) ListSessions(ctx context.Context, filters models.ListFilters) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM practice_sessions WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.Topic != "" {
		query += fmt.Sprintf(" AND topic = $%d", argNum)
		args = append(args, filters.Topic)
		argNum++
	}

	if filters.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argNum)
		args = append(args, string(filters.State))
		argNum++
	}

	query += " ORDER BY started_at DESC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	if err := r.attachResults(ctx, sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// attachResults loads the results of all given sessions in one query
func (r *PostgresSessionStore) attachResults(ctx context.Context, sessions []*models.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	byID := make(map[string]*models.Session, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	query := `
		SELECT session_id, question_id, correct, time_spent, attempts, hints_used, code, submitted_at
		FROM practice_results
		WHERE session_id = ANY($1)
		ORDER BY session_id, position
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID string
		var res models.SessionResult
		if err := rows.Scan(
			&sessionID,
			&res.QuestionID,
			&res.Correct,
			&res.TimeSpent,
			&res.Attempts,
			&res.HintsUsed,
			&res.Code,
			&res.SubmittedAt,
		); err != nil {
			return fmt.Errorf("failed to scan result: %w", err)
		}
		if s, ok := byID[sessionID]; ok {
			s.Results = append(s.Results, res)
		}
	}
	return rows.Err()
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	var difficulty, state string
	var reason sql.NullString
	var startedAt, endedAt sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.Topic,
		&difficulty,
		&s.TimeLimit,
		&s.QuestionCount,
		&s.QuestionIDs,
		&state,
		&reason,
		&startedAt,
		&endedAt,
		&s.Score,
		&s.Accuracy,
	)
	if err != nil {
		return nil, err
	}

	s.Difficulty = models.Difficulty(difficulty)
	s.State = models.SessionState(state)
	s.CompletionReason = models.CompletionReason(reason.String)
	s.Results = []models.SessionResult{}
	if startedAt.Valid {
		s.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}
	return &s, nil
}

// Helper functions

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
