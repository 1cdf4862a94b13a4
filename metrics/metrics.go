// Package metrics exposes Prometheus collectors for the decision pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal counts terminal decisions by outcome, reason and scheme.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_decisions_total",
			Help: "Total number of authentication decisions",
		},
		[]string{"outcome", "reason", "scheme"},
	)

	DecisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_decision_duration_seconds",
			Help:    "Duration of authentication decisions in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"outcome"},
	)

	PermissionCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_permission_cache_total",
			Help: "Permission cache lookups by result (hit, miss, stale, coalesced)",
		},
		[]string{"result"},
	)

	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)

	RateLimitFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_rate_limit_fallback_total",
			Help: "Rate checks served by the local fallback store",
		},
		[]string{"scope"},
	)

	ReplaysDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_replays_detected_total",
			Help: "Signed requests or refresh tokens rejected as replays",
		},
	)

	LockoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_lockouts_total",
			Help: "API keys locked after repeated credential failures",
		},
	)

	DependencyErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_dependency_errors_total",
			Help: "Dependency failures by component",
		},
		[]string{"component"},
	)

	AuditDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_audit_dropped_total",
			Help: "Audit events dropped because the buffer was full",
		},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gatekeeper_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

func RecordDecision(outcome, reason, scheme string, latency time.Duration) {
	DecisionsTotal.WithLabelValues(outcome, reason, scheme).Inc()
	DecisionDuration.WithLabelValues(outcome).Observe(latency.Seconds())
}
