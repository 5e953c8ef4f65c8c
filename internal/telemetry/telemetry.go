// Package telemetry exposes Prometheus metrics for the ingestion layer.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedgate_fetch_total",
			Help: "Total number of fetch attempts, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedgate_fetch_duration_seconds",
			Help:    "Histogram of live fetch latencies, labeled by source.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	policyDeniedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedgate_policy_denied_total",
			Help: "Total fetches skipped because the origin crawl policy denied the URL.",
		},
		[]string{"source"},
	)

	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedgate_cache_hits_total",
			Help: "Total results served from cache, labeled by source and tier.",
		},
		[]string{"source", "tier"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedgate_retries_total",
			Help: "Total transport retries, labeled by source.",
		},
		[]string{"source"},
	)

	circuitTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedgate_circuit_transitions_total",
			Help: "Total circuit breaker transitions, labeled by source and new state.",
		},
		[]string{"source", "state"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedgate_rate_limit_delay_seconds",
			Help:    "Histogram of delays introduced by the per-source pacing gate.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)
)

// ObserveFetch records one fetch attempt and its latency.
func ObserveFetch(source, outcome string, duration time.Duration) {
	fetchTotal.WithLabelValues(source, outcome).Inc()
	if outcome == "success" {
		fetchDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
	}
}

// ObservePolicyDenied counts a policy-denied fetch.
func ObservePolicyDenied(source string) {
	policyDeniedTotal.WithLabelValues(source).Inc()
}

// ObserveCacheHit counts a result served from the named cache tier.
func ObserveCacheHit(source, tier string) {
	cacheHitsTotal.WithLabelValues(source, tier).Inc()
}

// ObserveRetry counts one transport retry.
func ObserveRetry(source string) {
	retriesTotal.WithLabelValues(source).Inc()
}

// ObserveCircuitTransition counts a breaker state change.
func ObserveCircuitTransition(source, state string) {
	circuitTransitionsTotal.WithLabelValues(source, state).Inc()
}

// ObserveRateLimitDelay records how long the pacing gate held a caller.
func ObserveRateLimitDelay(source string, delay time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(source).Observe(delay.Seconds())
}
