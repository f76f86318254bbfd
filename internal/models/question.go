package models

import "strings"

// Difficulty is the difficulty tier of a question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid returns true if d is one of the known tiers
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ParseDifficulty normalizes free-form difficulty text ("Easy", " HARD ")
func ParseDifficulty(s string) (Difficulty, bool) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	return d, d.IsValid()
}

// Example is a human-authored example attached to a question.
// Input and Output are free text such as "nums = [2,7,11,15], target = 9".
type Example struct {
	Input       string `yaml:"input" json:"input"`
	Output      string `yaml:"output" json:"output"`
	Explanation string `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

// Question is a coding question. Owned by the question store and never
// modified once loaded into a session.
type Question struct {
	ID          string     `yaml:"id" json:"id"`
	Title       string     `yaml:"title" json:"title"`
	Description string     `yaml:"description" json:"description"`
	Topic       string     `yaml:"topic" json:"topic"`
	Difficulty  Difficulty `yaml:"difficulty" json:"difficulty"`
	Examples    []Example  `yaml:"examples" json:"examples"`
	Hints       []string   `yaml:"hints,omitempty" json:"hints,omitempty"`
	Constraints []string   `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Solution    string     `yaml:"solution,omitempty" json:"-"`
}

// HasSolution reports whether a reference solution is attached
func (q *Question) HasSolution() bool {
	return strings.TrimSpace(q.Solution) != ""
}

// QuestionView is what a candidate sees while practicing: no reference
// solution, hints only once revealed.
type QuestionView struct {
	ID            string     `json:"id"`
	Index         int        `json:"index"`
	Total         int        `json:"total"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Topic         string     `json:"topic"`
	Difficulty    Difficulty `json:"difficulty"`
	Examples      []Example  `json:"examples"`
	Constraints   []string   `json:"constraints,omitempty"`
	HintsRevealed []string   `json:"hints_revealed,omitempty"`
	HintsTotal    int        `json:"hints_total"`
	EntryPoint    string     `json:"entry_point"`
	Submitted     bool       `json:"submitted"`
}

// TestCase is an executable test derived from an Example
type TestCase struct {
	Args     []string `json:"args"`
	Input    string   `json:"input"` // Args joined with ", ", ready for call substitution
	Expected string   `json:"expected"`
}
