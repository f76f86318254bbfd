// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_executions_total",
			Help: "Total number of harness executions",
		},
		[]string{"strategy", "outcome"}, // outcome: "passed", "failed", "fatal", "recoverable"
	)

	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "practice_execution_duration_ms",
			Help:    "Execution duration in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"strategy"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_execution_fallbacks_total",
			Help: "Executions handed to the next strategy after a recoverable failure",
		},
		[]string{"from"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "practice_active_sessions",
			Help: "Number of live sessions held in memory",
		},
	)

	SessionsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_sessions_finished_total",
			Help: "Sessions that reached a terminal state",
		},
		[]string{"state", "reason"},
	)

	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_submissions_total",
			Help: "Accepted submissions by correctness",
		},
		[]string{"correct"},
	)

	PersistenceWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "practice_persistence_warnings_total",
			Help: "Session store writes that failed and were surfaced as warnings",
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "practice_rate_limit_hits_total",
			Help: "Total number of requests rejected by rate limiter",
		},
	)
)
