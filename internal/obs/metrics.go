package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/omahs/relayer/internal/callobs"
)

// Metrics holds the Prometheus collectors the demo binary registers and the fabric updates
// on every attempt and every completed dispatch.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheHitsTotal  *prometheus.CounterVec
	rateLimitTotal  *prometheus.CounterVec
	quorumDisagreed *prometheus.CounterVec
	inFlightGauge   *prometheus.GaugeVec
}

// NewMetrics constructs and registers the fabric's Prometheus collectors against registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcfabric_requests_total",
			Help: "Total upstream attempts, labeled by chain, method, and endpoint outcome.",
		}, []string{"chain_id", "method", "endpoint", "outcome"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpcfabric_request_duration_seconds",
			Help:    "Latency of upstream attempts.",
			Buckets: prometheus.DefBuckets,
		}, []string{"chain_id", "method", "endpoint"}),

		cacheHitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcfabric_cache_hits_total",
			Help: "KV cache hits, labeled by chain and method.",
		}, []string{"chain_id", "method"}),

		rateLimitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcfabric_rate_limit_events_total",
			Help: "Sustained rate-limit events (one per every N-th 429 response from an upstream), labeled by chain and endpoint.",
		}, []string{"chain_id", "endpoint"}),

		quorumDisagreed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpcfabric_quorum_disagreements_total",
			Help: "Logical calls where the accepted quorum value had at least one disagreeing provider.",
		}, []string{"chain_id", "method"}),

		inFlightGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rpcfabric_endpoint_in_flight",
			Help: "Current in-flight requests per endpoint.",
		}, []string{"chain_id", "endpoint"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.cacheHitsTotal,
		m.rateLimitTotal,
		m.quorumDisagreed,
		m.inFlightGauge,
	)
	return m
}

// ObserveCall records one upstream attempt's outcome and latency.
func (m *Metrics) ObserveCall(o callobs.CallObservation) {
	outcome := "success"
	if !o.Success {
		outcome = "failure"
	}
	m.requestsTotal.WithLabelValues(o.ChainID, o.Method, o.Endpoint, outcome).Inc()
	m.requestDuration.WithLabelValues(o.ChainID, o.Method, o.Endpoint).Observe(o.Latency.Seconds())
	if o.CacheHit {
		m.cacheHitsTotal.WithLabelValues(o.ChainID, o.Method).Inc()
	}
}

// ObserveRateLimit records one sustained-429 log event for an endpoint.
func (m *Metrics) ObserveRateLimit(chainID, endpoint string) {
	m.rateLimitTotal.WithLabelValues(chainID, endpoint).Inc()
}

// ObserveQuorumDisagreement records one completed dispatch that formed quorum despite at
// least one disagreeing provider.
func (m *Metrics) ObserveQuorumDisagreement(chainID, method string) {
	m.quorumDisagreed.WithLabelValues(chainID, method).Inc()
}

// SetInFlight reports an endpoint's current in-flight count for the gauge.
func (m *Metrics) SetInFlight(chainID, endpoint string, n int64) {
	m.inFlightGauge.WithLabelValues(chainID, endpoint).Set(float64(n))
}

// TimeCall is a small helper so callers can defer the latency measurement around a call.
func TimeCall() func() time.Duration {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}
