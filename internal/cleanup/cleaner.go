package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Reaper drops expired sessions and aborts idle ones
type Reaper interface {
	Reap(retention, maxIdle time.Duration) int
}

// Cleaner periodically reaps finished and abandoned practice sessions
type Cleaner struct {
	reaper    Reaper
	interval  time.Duration
	retention time.Duration
	maxIdle   time.Duration
}

// NewCleaner creates a new cleanup worker. retention is how long a finished
// session stays live in memory; maxIdle is how long a running session may
// go without activity before it is aborted (0 disables).
func NewCleaner(reaper Reaper, interval, retention, maxIdle time.Duration) *Cleaner {
	if interval <= 0 {
		interval = time.Minute
	}
	if retention <= 0 {
		retention = 30 * time.Minute
	}

	return &Cleaner{
		reaper:    reaper,
		interval:  interval,
		retention: retention,
		maxIdle:   maxIdle,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started",
		"interval", c.interval,
		"retention", c.retention,
		"max_idle", c.maxIdle,
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *Cleaner) cleanup() int {
	slog.Debug("running cleanup cycle")

	removed := c.reaper.Reap(c.retention, c.maxIdle)
	if removed > 0 {
		slog.Info("expired sessions removed", "count", removed)
	}
	return removed
}
