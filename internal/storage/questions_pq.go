package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/lib/pq"

	"github.com/terra-clan/practice-engine/internal/models"
)

// PostgresQuestionStore serves the question bank from PostgreSQL
type PostgresQuestionStore struct {
	db *sql.DB
}

// NewPostgresQuestionStore opens a database/sql handle on the lib/pq driver
func NewPostgresQuestionStore(ctx context.Context, dsn string) (*PostgresQuestionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresQuestionStore{db: db}, nil
}

// Close closes the database handle
func (s *PostgresQuestionStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity
func (s *PostgresQuestionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const questionColumns = `id, title, description, topic, difficulty, examples, hints, constraints, solution`

// GetQuestions returns up to count random questions matching the filters.
// Empty topic or difficulty matches everything; count <= 0 means no limit.
func (s *PostgresQuestionStore) GetQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]*models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if topic != "" {
		query += fmt.Sprintf(" AND topic = $%d", argNum)
		args = append(args, topic)
		argNum++
	}

	if difficulty != "" {
		query += fmt.Sprintf(" AND difficulty = $%d", argNum)
		args = append(args, string(difficulty))
		argNum++
	}

	query += " ORDER BY random()"

	if count > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, count)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	defer rows.Close()

	var questions []*models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetQuestion returns a single question by id
func (s *PostgresQuestionStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)

	q, err := scanQuestion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// Topics lists the topics that have at least one question
func (s *PostgresQuestionStore) Topics(ctx context.Context) ([]models.Topic, error) {
	query := `
		SELECT q.topic, COALESCE(t.name, q.topic), COALESCE(t.description, ''), q.difficulty, COUNT(*)
		FROM questions q
		LEFT JOIN topics t ON t.id = q.topic
		GROUP BY q.topic, t.name, t.description, q.difficulty
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Topic)
	for rows.Next() {
		var id, name, description, difficulty string
		var n int
		if err := rows.Scan(&id, &name, &description, &difficulty, &n); err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}

		t, ok := byID[id]
		if !ok {
			t = &models.Topic{ID: id, Name: name, Description: description, ByLevel: make(map[string]int)}
			byID[id] = t
		}
		t.Questions += n
		t.ByLevel[difficulty] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	topics := make([]models.Topic, 0, len(byID))
	for _, t := range byID {
		topics = append(topics, *t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID < topics[j].ID })
	return topics, nil
}

// Import upserts topics and questions, typically from the YAML bank
func (s *PostgresQuestionStore) Import(ctx context.Context, topics []models.Topic, questions []*models.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range topics {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO topics (id, name, description) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		`, t.ID, t.Name, t.Description)
		if err != nil {
			return fmt.Errorf("failed to import topic %s: %w", t.ID, err)
		}
	}

	for _, q := range questions {
		examples, err := json.Marshal(q.Examples)
		if err != nil {
			return fmt.Errorf("failed to encode examples of %s: %w", q.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO questions (id, title, description, topic, difficulty, examples, hints, constraints, solution)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				topic = EXCLUDED.topic,
				difficulty = EXCLUDED.difficulty,
				examples = EXCLUDED.examples,
				hints = EXCLUDED.hints,
				constraints = EXCLUDED.constraints,
				solution = EXCLUDED.solution
		`,
			q.ID, q.Title, q.Description, q.Topic, string(q.Difficulty),
			examples, pq.Array(q.Hints), pq.Array(q.Constraints), q.Solution,
		)
		if err != nil {
			return fmt.Errorf("failed to import question %s: %w", q.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	slog.Info("questions imported", "topics", len(topics), "questions", len(questions))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var q models.Question
	var difficulty string
	var examples []byte

	err := row.Scan(
		&q.ID,
		&q.Title,
		&q.Description,
		&q.Topic,
		&difficulty,
		&examples,
		pq.Array(&q.Hints),
		pq.Array(&q.Constraints),
		&q.Solution,
	)
	if err != nil {
		return nil, err
	}

	q.Difficulty = models.Difficulty(difficulty)
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &q.Examples); err != nil {
			return nil, fmt.Errorf("invalid examples for %s: %w", q.ID, err)
		}
	}
	return &q, nil
}
