// Package scoring turns execution output into session results and keeps
// the session score in step with them.
package scoring

import (
	"errors"
	"math"
	"time"

	"github.com/terra-clan/practice-engine/internal/models"
)

var (
	ErrUnknownQuestion = errors.New("question is not part of the session")
	ErrDuplicateResult = errors.New("question already has a result")
)

// Meta is the per-question bookkeeping recorded alongside a verdict
type Meta struct {
	Attempts    int
	HintsUsed   int
	Code        string
	SubmittedAt time.Time
}

// Record appends the result for questionID and returns the updated copy of
// the session. The input session and its results slice are not modified.
func Record(s *models.Session, questionID string, out models.NormalizedOutput, elapsed time.Duration, meta Meta) (*models.Session, models.SessionResult, error) {
	if !contains(s.QuestionIDs, questionID) {
		return nil, models.SessionResult{}, ErrUnknownQuestion
	}
	if s.HasResult(questionID) {
		return nil, models.SessionResult{}, ErrDuplicateResult
	}

	result := models.SessionResult{
		QuestionID:  questionID,
		Correct:     IsCorrect(out),
		TimeSpent:   int(elapsed.Round(time.Second) / time.Second),
		Attempts:    meta.Attempts,
		HintsUsed:   meta.HintsUsed,
		Code:        meta.Code,
		SubmittedAt: meta.SubmittedAt,
	}

	next := s.Clone()
	next.Results = append(next.Results, result)
	next.Accuracy = Accuracy(next.Results)
	next.Score = Score(next.Accuracy)

	return next, result, nil
}

// IsCorrect is true only when there was something to verify and every
// expected test ran and passed.
func IsCorrect(out models.NormalizedOutput) bool {
	return out.AllPassed()
}

// Accuracy is the share of correct results, 0 when there are none
func Accuracy(results []models.SessionResult) float64 {
	if len(results) == 0 {
		return 0
	}
	correct := 0
	for _, r := range results {
		if r.Correct {
			correct++
		}
	}
	return float64(correct) / float64(len(results))
}

// Score maps accuracy to a 0-100 integer
func Score(accuracy float64) int {
	return int(math.Round(accuracy * 100))
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
