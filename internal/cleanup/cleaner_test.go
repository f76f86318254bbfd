package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeReaper struct {
	mu        sync.Mutex
	calls     int
	retention time.Duration
	maxIdle   time.Duration
	removed   int
}

func (f *fakeReaper) Reap(retention, maxIdle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.retention = retention
	f.maxIdle = maxIdle
	return f.removed
}

func (f *fakeReaper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNewCleanerDefaults(t *testing.T) {
	c := NewCleaner(&fakeReaper{}, 0, 0, 0)
	if c.interval != time.Minute {
		t.Errorf("interval = %v, want 1m", c.interval)
	}
	if c.retention != 30*time.Minute {
		t.Errorf("retention = %v, want 30m", c.retention)
	}
}

func TestCleanupPassesLimits(t *testing.T) {
	r := &fakeReaper{removed: 2}
	c := NewCleaner(r, time.Minute, time.Hour, 10*time.Minute)

	if got := c.cleanup(); got != 2 {
		t.Errorf("cleanup() = %d, want 2", got)
	}
	if r.retention != time.Hour || r.maxIdle != 10*time.Minute {
		t.Errorf("Reap called with %v, %v", r.retention, r.maxIdle)
	}
}

func TestCleanerRunsUntilCanceled(t *testing.T) {
	r := &fakeReaper{}
	c := NewCleaner(r, 5*time.Millisecond, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.Now().Add(time.Second)
	for r.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if r.callCount() < 2 {
		t.Fatalf("expected at least two cleanup cycles, got %d", r.callCount())
	}
}
