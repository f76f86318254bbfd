package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/practice-engine/internal/models"
)

// ErrNoResults is returned when program output carries no verdict line
var ErrNoResults = errors.New("no structured results in program output")

type record struct {
	Index    int     `json:"index"`
	Input    string  `json:"input"`
	Expected string  `json:"expected"`
	Actual   *string `json:"actual"`
	Passed   bool    `json:"passed"`
	Error    *string `json:"error"`
}

// ParseOutput separates the verdict line from the rest of stdout.
// It returns the decoded results and the remaining console text. When no
// verdict line can be decoded, ErrNoResults is returned together with the
// full console text.
func ParseOutput(stdout string) ([]models.ExecutionResult, string, error) {
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")

	idx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], ResultMarker) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, stdout, ErrNoResults
	}

	var records []record
	payload := strings.TrimPrefix(lines[idx], ResultMarker)
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, stdout, fmt.Errorf("%w: %v", ErrNoResults, err)
	}

	console := strings.Join(append(lines[:idx:idx], lines[idx+1:]...), "\n")

	results := make([]models.ExecutionResult, 0, len(records))
	for _, rec := range records {
		res := models.ExecutionResult{
			Index:    rec.Index,
			Input:    rec.Input,
			Expected: rec.Expected,
			Actual:   rec.Actual,
			Passed:   rec.Passed && rec.Error == nil,
		}
		if rec.Error != nil {
			res.Error = *rec.Error
			if res.Error == "" {
				res.Error = "unknown error"
			}
		}
		results = append(results, res)
	}

	return results, console, nil
}
