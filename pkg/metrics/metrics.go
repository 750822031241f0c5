// Package metrics defines the Prometheus collectors used by the summarizer,
// the worker and the batch tool, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline and its surfaces.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DocumentsProcessedTotal *prometheus.CounterVec
	DocumentWords           prometheus.Histogram
	StrategyLatency         *prometheus.HistogramVec
	StrategyFallbacksTotal  *prometheus.CounterVec
	EntitiesDetectedTotal   *prometheus.CounterVec
	ModelCallsTotal         *prometheus.CounterVec
	ModelCallDuration       *prometheus.HistogramVec
	CircuitBreakerState     *prometheus.GaugeVec

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	EventsConsumedTotal *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Binaries pass
// prometheus.DefaultRegisterer; tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocumentsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediscrub_documents_processed_total",
				Help: "Documents processed by outcome (ok, degraded, error).",
			},
			[]string{"status"},
		),
		DocumentWords: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mediscrub_document_words",
				Help:    "Word count of processed documents.",
				Buckets: prometheus.ExponentialBuckets(25, 2, 10),
			},
		),
		StrategyLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediscrub_strategy_latency_seconds",
				Help:    "Summary strategy latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"strategy"},
		),
		StrategyFallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediscrub_strategy_fallbacks_total",
				Help: "Summaries that fell back to the original text because a model failed.",
			},
			[]string{"strategy"},
		),
		EntitiesDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediscrub_entities_detected_total",
				Help: "PHI entities reported by the detector, by entity type.",
			},
			[]string{"type"},
		),
		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediscrub_model_calls_total",
				Help: "External model calls by model and status (ok, error, open).",
			},
			[]string{"model", "status"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediscrub_model_call_duration_seconds",
				Help:    "External model call latency in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		EventsConsumedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediscrub_events_consumed_total",
				Help: "Kafka document events consumed by the worker, by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocumentsProcessedTotal,
		m.DocumentWords,
		m.StrategyLatency,
		m.StrategyFallbacksTotal,
		m.EntitiesDetectedTotal,
		m.ModelCallsTotal,
		m.ModelCallDuration,
		m.CircuitBreakerState,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EventsConsumedTotal,
	)

	return m
}

// SetBreakerState publishes a breaker's numeric state. The values match
// resilience.State.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
