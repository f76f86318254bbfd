package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/terra-clan/practice-engine/internal/harness"
	"github.com/terra-clan/practice-engine/internal/models"
)

// LocalInProcess evaluates programs in an embedded ECMAScript interpreter.
// Submitted code shares the host process: there is no memory or CPU
// isolation beyond the wall-clock interrupt.
type LocalInProcess struct {
	timeout time.Duration
}

// NewLocalInProcess creates the local strategy
func NewLocalInProcess(timeout time.Duration) *LocalInProcess {
	return &LocalInProcess{timeout: timeout}
}

// Name implements Strategy
func (l *LocalInProcess) Name() string { return "local" }

// Run implements Strategy. Every run gets a fresh VM and its own console
// sink, so concurrent runs never observe each other's output.
func (l *LocalInProcess) Run(ctx context.Context, p harness.Program) (models.NormalizedOutput, error) {
	if err := ctx.Err(); err != nil {
		return models.NormalizedOutput{}, err
	}

	vm := goja.New()
	sink := &consoleSink{}
	if err := vm.Set("console", sink.object(vm)); err != nil {
		return models.NormalizedOutput{}, recoverable("local runtime: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(runCtx.Err())
		case <-done:
		}
	}()

	_, err := vm.RunString(p.Source)
	if err != nil {
		if ctx.Err() != nil {
			return models.NormalizedOutput{}, ctx.Err()
		}
		return fatalOutput(p, l.describe(err), sink.String()), nil
	}

	return normalize(p, sink.String(), "", 0), nil
}

func (l *LocalInProcess) describe(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Sprintf("execution timed out after %s", l.timeout)
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		if v := exception.Value(); v != nil {
			return v.String()
		}
	}
	return err.Error()
}

// consoleSink collects console output for a single run
type consoleSink struct {
	b strings.Builder
}

func (s *consoleSink) object(vm *goja.Runtime) *goja.Object {
	console := vm.NewObject()
	for _, method := range []string{"log", "info", "debug", "warn", "error"} {
		_ = console.Set(method, s.write)
	}
	return console
}

func (s *consoleSink) write(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = formatValue(arg)
	}
	s.b.WriteString(strings.Join(parts, " "))
	s.b.WriteByte('\n')
	return goja.Undefined()
}

func (s *consoleSink) String() string {
	return s.b.String()
}

// formatValue renders objects as JSON and everything else as its string form
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	if _, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(v); !isFunc {
			if data, err := json.Marshal(v.Export()); err == nil {
				return string(data)
			}
		}
	}
	return v.String()
}
