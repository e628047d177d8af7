// Package metrics exposes the gateway's Prometheus collectors. The gateway
// only ever pushes observations; nothing read from here feeds back into
// routing or breaker decisions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pelorus"

// Circuit state gauge values.
const (
	CircuitClosed   = 0.0
	CircuitHalfOpen = 0.5
	CircuitOpen     = 1.0
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "requests_total",
			Help:      "Total requests recorded per provider and result",
		},
		[]string{"provider", "result"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "request_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "circuit_state",
			Help:      "Circuit state per provider (0 closed, 0.5 half-open, 1 open)",
		},
		[]string{"provider"},
	)

	RequestsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "requests_blocked_total",
			Help:      "Requests rejected because the circuit was open",
		},
		[]string{"provider"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "cache_hits_total",
			Help:      "Dedup cache hits",
		},
	)

	BatchesDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "batches_dispatched_total",
			Help:      "Batches handed to the orchestrator",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "batch_size",
			Help:      "Number of requests per dispatched batch",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		},
	)

	QueueRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "queue_rejections_total",
			Help:      "Submissions rejected by queue backpressure",
		},
	)
)

// ObserveRequest records one completed call for a provider.
func ObserveRequest(provider, result string, dur time.Duration) {
	RequestsTotal.WithLabelValues(provider, result).Inc()
	RequestDuration.WithLabelValues(provider).Observe(dur.Seconds())
}

// SetCircuitState publishes a provider's circuit state.
func SetCircuitState(provider string, state float64) {
	CircuitState.WithLabelValues(provider).Set(state)
}

// IncBlocked counts a call rejected by an open circuit.
func IncBlocked(provider string) {
	RequestsBlocked.WithLabelValues(provider).Inc()
}
