package models

// Outcome classifies a single test case run
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"  // ran, output mismatched
	OutcomeErrored Outcome = "errored" // threw while running
)

// ExecutionResult is the verdict for one test case
type ExecutionResult struct {
	Index    int     `json:"index"`
	Input    string  `json:"input"`
	Actual   *string `json:"actual,omitempty"`
	Expected string  `json:"expected"`
	Passed   bool    `json:"passed"`
	Error    string  `json:"error,omitempty"`
}

// Outcome derives the Passed/Failed/Errored union from the flat record
func (r ExecutionResult) Outcome() Outcome {
	switch {
	case r.Error != "":
		return OutcomeErrored
	case r.Passed:
		return OutcomePassed
	default:
		return OutcomeFailed
	}
}

// NormalizedOutput is the strategy-agnostic result of running a harness
type NormalizedOutput struct {
	PassedCount   int               `json:"passed_count"`
	TotalCount    int               `json:"total_count"`
	Results       []ExecutionResult `json:"results"`
	ConsoleOutput string            `json:"console_output,omitempty"`
	FatalError    string            `json:"fatal_error,omitempty"`

	// Strategy names the strategy that produced the output. Kept for logs
	// and metrics only; never serialized to callers.
	Strategy string `json:"-"`
}

// AllPassed is true when every expected test ran and passed
func (o NormalizedOutput) AllPassed() bool {
	if o.FatalError != "" || o.TotalCount == 0 || len(o.Results) != o.TotalCount {
		return false
	}
	for _, r := range o.Results {
		if r.Outcome() != OutcomePassed {
			return false
		}
	}
	return true
}
