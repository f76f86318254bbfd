package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/terra-clan/practice-engine/internal/harness"
	"github.com/terra-clan/practice-engine/internal/metrics"
	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/telemetry"
)

// Fallback tries strategies in order, moving on only after a recoverable
// failure. Callers cannot tell which strategy produced the output.
type Fallback struct {
	strategies []Strategy
}

// NewFallback builds the policy from an ordered list; nil entries are skipped
func NewFallback(strategies ...Strategy) *Fallback {
	f := &Fallback{}
	for _, s := range strategies {
		if s != nil {
			f.strategies = append(f.strategies, s)
		}
	}
	return f
}

// Name implements Strategy
func (f *Fallback) Name() string { return "fallback" }

// Run implements Strategy
func (f *Fallback) Run(ctx context.Context, p harness.Program) (models.NormalizedOutput, error) {
	lastErr := ErrNoStrategy

	for i, s := range f.strategies {
		if err := ctx.Err(); err != nil {
			return models.NormalizedOutput{}, err
		}

		out, err := f.runOne(ctx, s, p)
		if err == nil {
			out.Strategy = s.Name()
			return out, nil
		}
		if !errors.Is(err, ErrRecoverable) {
			return models.NormalizedOutput{}, err
		}

		lastErr = err
		metrics.FallbacksTotal.WithLabelValues(s.Name()).Inc()
		if i+1 < len(f.strategies) {
			slog.Warn("execution strategy failed, falling back",
				"strategy", s.Name(),
				"next", f.strategies[i+1].Name(),
				"error", err,
			)
		}
	}

	return models.NormalizedOutput{}, lastErr
}

func (f *Fallback) runOne(ctx context.Context, s Strategy, p harness.Program) (models.NormalizedOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "execution."+s.Name(),
		"execution.language", p.Language,
		"execution.entry_point", p.EntryPoint,
	)
	start := time.Now()

	out, err := s.Run(ctx, p)

	metrics.ExecutionDuration.WithLabelValues(s.Name()).Observe(float64(time.Since(start).Milliseconds()))
	metrics.ExecutionsTotal.WithLabelValues(s.Name(), outcomeLabel(out, err)).Inc()
	telemetry.EndSpan(span, err)

	return out, err
}

func outcomeLabel(out models.NormalizedOutput, err error) string {
	switch {
	case errors.Is(err, ErrRecoverable):
		return "recoverable"
	case err != nil:
		return "error"
	case out.FatalError != "":
		return "fatal"
	case out.AllPassed():
		return "passed"
	default:
		return "failed"
	}
}
