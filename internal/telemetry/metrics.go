// Package telemetry provides observability primitives for the gateway:
// the Prometheus collector set consulted by the pipeline and exposed at
// GET /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the pipeline touches.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec   // labels: method, outcome
	RequestDuration  *prometheus.HistogramVec // labels: method
	ErrorsByCategory *prometheus.CounterVec   // labels: method, category (spec §7)

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	RateLimitHits *prometheus.CounterVec // labels: type (global|per_chat)

	RetriesTotal *prometheus.CounterVec // labels: reason

	CircuitBreakerState      prometheus.Gauge // 0 closed / 1 open / 2 half-open
	CircuitBreakerTripsTotal prometheus.Counter
}

// NewMetrics builds and registers every collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "requests_total",
			Help:      "Total pipeline invocations by method and outcome.",
		}, []string{"method", "outcome"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "gatekeeper",
			Name:                            "request_duration_seconds",
			Help:                            "End-to-end invocation duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method"}),

		ErrorsByCategory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "errors_by_category_total",
			Help:      "Total failed invocations by method and classified error category.",
		}, []string{"method", "category"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "cache_hits_total",
			Help:      "Total response cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "cache_misses_total",
			Help:      "Total response cache misses.",
		}),

		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatekeeper",
			Name:      "cache_size",
			Help:      "Current number of live cache entries.",
		}),

		RateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "rate_limit_hits_total",
			Help:      "Total rate limit refusals by limiter type.",
		}, []string{"type"}),

		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "retries_total",
			Help:      "Total retry attempts by classification reason.",
		}, []string{"reason"}),

		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatekeeper",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open).",
		}),

		CircuitBreakerTripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total transitions into the open state.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ErrorsByCategory,
		m.CacheHits,
		m.CacheMisses,
		m.CacheSize,
		m.RateLimitHits,
		m.RetriesTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerTripsTotal,
	)

	return m
}
