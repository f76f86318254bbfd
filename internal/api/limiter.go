package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/terra-clan/practice-engine/internal/metrics"
)

// sessionLimiter throttles code executions per session
type sessionLimiter struct {
	rate  rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	lastPrune time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSessionLimiter(perSecond float64, burst int, ttl time.Duration) *sessionLimiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &sessionLimiter{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

// Allow reports whether session id may run another execution now
func (l *sessionLimiter) Allow(id string) bool {
	now := l.now()

	l.mu.Lock()
	l.pruneLocked(now)
	e, ok := l.limiters[id]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[id] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	if !e.limiter.AllowN(now, 1) {
		metrics.RateLimitHits.Inc()
		return false
	}
	return true
}

// pruneLocked drops limiters of sessions not seen for ttl
func (l *sessionLimiter) pruneLocked(now time.Time) {
	if now.Sub(l.lastPrune) < l.ttl {
		return
	}
	for id, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.ttl {
			delete(l.limiters, id)
		}
	}
	l.lastPrune = now
}

// Middleware rejects requests over the per-session limit with 429
func (l *sessionLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(chi.URLParam(r, "id")) {
			respondError(w, http.StatusTooManyRequests, "rate_limited", "too many executions, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
