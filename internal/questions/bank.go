// Package questions loads the practice question bank from YAML files.
//
// Layout:
//
//	questions/
//	  arrays/
//	    topic.yaml        name and description of the topic
//	    two-sum.yaml      one question per file
//	  strings/
//	    ...
package questions

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/storage"
)

// Bank is an in-memory question store populated from YAML
type Bank struct {
	mu        sync.RWMutex
	questions map[string]*models.Question
	topics    map[string]*models.Topic

	shuffle func(n int, swap func(i, j int))
}

// NewBank creates an empty bank
func NewBank() *Bank {
	return &Bank{
		questions: make(map[string]*models.Question),
		topics:    make(map[string]*models.Topic),
		shuffle:   rand.Shuffle,
	}
}

// LoadFromDir loads every topic directory under dir. Files that fail to
// parse are logged and skipped.
func (b *Bank) LoadFromDir(dir string) error {
	slog.Info("loading question bank", "dir", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read question directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		n, err := b.loadTopic(entry.Name(), filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("failed to load topic", "topic", entry.Name(), "error", err)
			continue
		}
		loaded += n
	}

	slog.Info("question bank loaded", "questions", loaded, "topics", len(b.topics))
	return nil
}

func (b *Bank) loadTopic(id, dir string) (int, error) {
	topic := models.Topic{ID: id, Name: id}

	data, err := os.ReadFile(filepath.Join(dir, "topic.yaml"))
	switch {
	case err == nil:
		var tf topicFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return 0, fmt.Errorf("failed to parse topic.yaml: %w", err)
		}
		if tf.Name != "" {
			topic.Name = tf.Name
		}
		topic.Description = tf.Description
	case !os.IsNotExist(err):
		return 0, fmt.Errorf("failed to read topic.yaml: %w", err)
	}

	b.mu.Lock()
	if _, ok := b.topics[id]; !ok {
		b.topics[id] = &models.Topic{ID: id, ByLevel: make(map[string]int)}
	}
	b.topics[id].Name = topic.Name
	b.topics[id].Description = topic.Description
	b.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read topic directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") || entry.Name() == "topic.yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if _, err := b.LoadFromFile(path, id); err != nil {
			slog.Warn("failed to load question", "file", path, "error", err)
			continue
		}
		loaded++
	}

	return loaded, nil
}

// LoadFromFile loads one question. The question id defaults to the file
// name and the topic to defaultTopic.
func (b *Bank) LoadFromFile(path, defaultTopic string) (*models.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var q models.Question
	if err := yaml.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if q.ID == "" {
		base := filepath.Base(path)
		q.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if q.Topic == "" {
		q.Topic = defaultTopic
	}

	if err := b.Add(&q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Add validates and registers a question
func (b *Bank) Add(q *models.Question) error {
	if q.Title == "" {
		return fmt.Errorf("question title is required")
	}
	if q.Topic == "" {
		return fmt.Errorf("question topic is required")
	}
	d, ok := models.ParseDifficulty(string(q.Difficulty))
	if !ok {
		return fmt.Errorf("invalid difficulty %q", q.Difficulty)
	}
	q.Difficulty = d

	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.questions[q.ID]; ok {
		b.uncount(old)
	}
	b.questions[q.ID] = q

	t, ok := b.topics[q.Topic]
	if !ok {
		t = &models.Topic{ID: q.Topic, Name: q.Topic, ByLevel: make(map[string]int)}
		b.topics[q.Topic] = t
	}
	t.Questions++
	t.ByLevel[string(q.Difficulty)]++

	return nil
}

func (b *Bank) uncount(q *models.Question) {
	if t, ok := b.topics[q.Topic]; ok {
		t.Questions--
		t.ByLevel[string(q.Difficulty)]--
	}
}

// GetQuestions implements storage.QuestionStore. Matching questions are
// returned in random order; an empty topic or difficulty matches all.
func (b *Bank) GetQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]*models.Question, error) {
	b.mu.RLock()
	var matched []*models.Question
	for _, q := range b.questions {
		if topic != "" && q.Topic != topic {
			continue
		}
		if difficulty != "" && q.Difficulty != difficulty {
			continue
		}
		matched = append(matched, q)
	}
	b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	b.shuffle(len(matched), func(i, j int) { matched[i], matched[j] = matched[j], matched[i] })

	if count > 0 && len(matched) > count {
		matched = matched[:count]
	}
	return matched, nil
}

// GetQuestion implements storage.Catalog
func (b *Bank) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.questions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return q, nil
}

// Topics implements storage.Catalog
func (b *Bank) Topics(ctx context.Context) ([]models.Topic, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]models.Topic, 0, len(b.topics))
	for _, t := range b.topics {
		c := *t
		c.ByLevel = make(map[string]int, len(t.ByLevel))
		for k, v := range t.ByLevel {
			if v > 0 {
				c.ByLevel[k] = v
			}
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Len returns the number of loaded questions
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// topicFile represents the YAML structure of a topic.yaml file
type topicFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}
