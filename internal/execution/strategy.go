// Package execution runs generated harness programs and normalizes their
// output into per-test verdicts. A remote sandbox is preferred; the local
// in-process interpreter takes over when the sandbox is unavailable.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/practice-engine/internal/harness"
	"github.com/terra-clan/practice-engine/internal/models"
)

var (
	// ErrRecoverable marks failures where another strategy may still succeed
	ErrRecoverable = errors.New("execution strategy unavailable")
	// ErrNoStrategy is returned by a Fallback with nothing left to try
	ErrNoStrategy = errors.New("no execution strategy available")
)

// Strategy runs a harness program. Implementations return ErrRecoverable
// (wrapped) when the program could not be run at all; a program that ran
// and crashed is reported through NormalizedOutput.FatalError instead.
type Strategy interface {
	Name() string
	Run(ctx context.Context, p harness.Program) (models.NormalizedOutput, error)
}

func recoverable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRecoverable, fmt.Sprintf(format, args...))
}

// normalize turns raw process output into the shared result shape. Output
// without a verdict line is a fatal error; the raw text is preserved as
// console output and no verdicts are invented.
func normalize(p harness.Program, stdout, stderr string, exitCode int) models.NormalizedOutput {
	results, console, err := harness.ParseOutput(stdout)
	console = joinConsole(console, stderr)

	if err != nil {
		msg := firstLine(stderr)
		if msg == "" {
			msg = fmt.Sprintf("program produced no results (exit code %d)", exitCode)
		}
		return fatalOutput(p, msg, console)
	}

	out := models.NormalizedOutput{
		TotalCount:    p.TestCount,
		Results:       results,
		ConsoleOutput: console,
	}
	for _, r := range results {
		if r.Outcome() == models.OutcomePassed {
			out.PassedCount++
		}
	}
	return out
}

// fatalOutput reports a program that never reached its verdict line as a
// single errored entry.
func fatalOutput(p harness.Program, msg, console string) models.NormalizedOutput {
	return models.NormalizedOutput{
		TotalCount: p.TestCount,
		Results: []models.ExecutionResult{{
			Index: 0,
			Error: msg,
		}},
		ConsoleOutput: console,
		FatalError:    msg,
	}
}

func joinConsole(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimRight(p, "\n"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
