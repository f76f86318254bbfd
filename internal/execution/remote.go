package execution

import (
	"context"
	"time"

	"github.com/terra-clan/practice-engine/internal/harness"
	"github.com/terra-clan/practice-engine/internal/models"
)

// RemoteSandbox runs programs through an isolated Sandbox transport
type RemoteSandbox struct {
	sandbox       Sandbox
	timeout       time.Duration
	memoryLimitMB int
}

// NewRemoteSandbox wraps sandbox with a wall-clock timeout per run
func NewRemoteSandbox(sandbox Sandbox, timeout time.Duration, memoryLimitMB int) *RemoteSandbox {
	return &RemoteSandbox{
		sandbox:       sandbox,
		timeout:       timeout,
		memoryLimitMB: memoryLimitMB,
	}
}

// Name implements Strategy
func (r *RemoteSandbox) Name() string { return "remote" }

// Run implements Strategy. Transport failures of any kind, timeouts
// included, are recoverable.
func (r *RemoteSandbox) Run(ctx context.Context, p harness.Program) (models.NormalizedOutput, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.sandbox.Execute(runCtx, Request{
		Language:      p.Language,
		Source:        p.Source,
		TimeLimit:     r.timeout,
		MemoryLimitMB: r.memoryLimitMB,
	})
	if err != nil {
		return models.NormalizedOutput{}, recoverable("remote sandbox: %v", err)
	}

	return normalize(p, resp.Stdout, resp.Stderr, resp.ExitCode), nil
}
