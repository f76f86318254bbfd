// Package timer provides the session countdown.
package timer

import (
	"sync"
	"time"
)

// Countdown owns a remaining-seconds counter and the goroutine that ticks
// it. Stopping only cancels future ticks; the counter is left as is so a
// later Start resumes from the same value.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	interval  time.Duration
	stop      chan struct{}
}

// New creates a stopped countdown of seconds, ticking every interval
func New(seconds int, interval time.Duration) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{remaining: seconds, interval: interval}
}

// Start begins calling onTick once per interval until Stop. Calling Start
// on a running countdown is a no-op.
func (c *Countdown) Start(onTick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		return
	}
	stop := make(chan struct{})
	c.stop = stop

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				onTick()
			}
		}
	}()
}

// Stop cancels future ticks without waiting for an in-progress onTick, so
// it is safe to call from inside onTick. Stopping twice is a no-op.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop == nil {
		return
	}
	close(c.stop)
	c.stop = nil
}

// Tick decrements the counter by one second, never below zero, and
// returns the new value.
func (c *Countdown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.remaining > 0 {
		c.remaining--
	}
	return c.remaining
}

// Remaining returns the seconds left
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether ticks are scheduled
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}
