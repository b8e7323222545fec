// Package metrics defines the hub's Prometheus instrumentation. Metrics are
// registered at package init via promauto so every importer shares the same
// global registry that promhttp.Handler() serves from /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DatabaseConnectionsGauge tracks the Postgres connection pool's open, idle,
// and in-use counts, sampled periodically by the main wiring loop.
var DatabaseConnectionsGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "integration_hub_database_connections",
		Help: "Database connection pool state by status (open, idle, in_use).",
	},
	[]string{"status"},
)

// OutboxEnqueuedTotal counts records written to either outbox queue.
var OutboxEnqueuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "integration_hub_outbox_enqueued_total",
		Help: "Outbox records enqueued, by queue.",
	},
	[]string{"queue"},
)

// OutboxDispatchedTotal counts dispatch attempts by queue and outcome
// (sent, failed, exhausted).
var OutboxDispatchedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "integration_hub_outbox_dispatched_total",
		Help: "Outbox dispatch attempts, by queue and outcome.",
	},
	[]string{"queue", "outcome"},
)

// OutboxDispatchLatency measures the wall-clock time of a single dispatch
// attempt against the downstream peer, by queue.
var OutboxDispatchLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "integration_hub_outbox_dispatch_latency_seconds",
		Help:    "Latency of a single outbox dispatch attempt.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"queue"},
)

// OutboxPendingGauge tracks the current depth of each outbox queue.
var OutboxPendingGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "integration_hub_outbox_pending",
		Help: "Outbox records currently pending dispatch, by queue.",
	},
	[]string{"queue"},
)

// CircuitBreakerStateGauge reports the gobreaker state per downstream host
// (0=closed, 1=half-open, 2=open).
var CircuitBreakerStateGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "integration_hub_circuit_breaker_state",
		Help: "Circuit breaker state by downstream target (0=closed, 1=half-open, 2=open).",
	},
	[]string{"target"},
)

// RateLimitRejectionsTotal counts requests rejected by the outbound rolling
// limiter or the ambient ingress limiters, by limiter name.
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "integration_hub_rate_limit_rejections_total",
		Help: "Requests rejected by a rate limiter, by limiter name.",
	},
	[]string{"limiter"},
)

// IdempotencyCacheHitsTotal counts idempotent-replay responses served from
// the idempotency cache versus freshly processed requests.
var IdempotencyCacheHitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "integration_hub_idempotency_cache_hits_total",
		Help: "Idempotency key lookups, by outcome (hit, miss, conflict).",
	},
	[]string{"outcome"},
)

// ReconciliationMismatchesGauge reports the mismatch count from the most
// recent reconciliation run, by mismatch direction.
var ReconciliationMismatchesGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "integration_hub_reconciliation_mismatches",
		Help: "Mismatches found in the most recent reconciliation run.",
	},
	[]string{"direction"},
)
