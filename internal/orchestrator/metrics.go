package orchestrator

import "sync/atomic"

// Metrics holds the monotonic per-source fetch counters. They are mutated
// on the orchestrator's paths only and reset solely by an explicit
// operator call.
type Metrics struct {
	requestsTotal   atomic.Int64
	requestsSuccess atomic.Int64
	requestsFailed  atomic.Int64
	blockedByPolicy atomic.Int64
	cacheHits       atomic.Int64
	retries         atomic.Int64
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	RequestsTotal   int64 `json:"requests_total"`
	RequestsSuccess int64 `json:"requests_success"`
	RequestsFailed  int64 `json:"requests_failed"`
	BlockedByPolicy int64 `json:"blocked_by_policy"`
	CacheHits       int64 `json:"cache_hits"`
	Retries         int64 `json:"retries"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RequestsTotal:   m.requestsTotal.Load(),
		RequestsSuccess: m.requestsSuccess.Load(),
		RequestsFailed:  m.requestsFailed.Load(),
		BlockedByPolicy: m.blockedByPolicy.Load(),
		CacheHits:       m.cacheHits.Load(),
		Retries:         m.retries.Load(),
	}
}

// Reset zeroes every counter. Reserved for operator use.
func (m *Metrics) Reset() {
	m.requestsTotal.Store(0)
	m.requestsSuccess.Store(0)
	m.requestsFailed.Store(0)
	m.blockedByPolicy.Store(0)
	m.cacheHits.Store(0)
	m.retries.Store(0)
}

// IncRetries counts one transport retry. Exposed so the transport's retry
// hook can feed the orchestrator-owned counter.
func (m *Metrics) IncRetries() {
	m.retries.Add(1)
}
