// Package metrics defines the Prometheus metric collectors used across the
// trainer and scorer services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	TrainingJobsTotal      *prometheus.CounterVec
	TrainingDuration       *prometheus.HistogramVec
	TrainingRoundsTotal    prometheus.Counter
	TrainingScore          *prometheus.GaugeVec
	DegenerateQueriesTotal prometheus.Counter
	ConfidenceClampsTotal  prometheus.Counter

	RankRequestsTotal    *prometheus.CounterVec
	RankLatency          *prometheus.HistogramVec
	RankedDocumentsCount prometheus.Histogram
	ModelCacheHitsTotal  prometheus.Counter
	ModelCacheMissTotal  prometheus.Counter

	CircuitBreakerState *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		TrainingJobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "training_jobs_total",
				Help: "Total training jobs by terminal status (converged, max_rounds, stalled, cancelled, failed).",
			},
			[]string{"status"},
		),
		TrainingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "training_duration_seconds",
				Help:    "Wall-clock duration of a full training run in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"metric"},
		),
		TrainingRoundsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "training_rounds_total",
				Help: "Total boosting rounds executed across all jobs.",
			},
		),
		TrainingScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "training_score",
				Help: "Final aggregate metric of the most recent run per model and split.",
			},
			[]string{"model", "split"},
		),
		DegenerateQueriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "degenerate_queries_total",
				Help: "Queries seen with no relevant document; they contribute 0 to the metric.",
			},
		),
		ConfidenceClampsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "confidence_clamps_total",
				Help: "Confidence computations clamped at the numeric boundary.",
			},
		),
		RankRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_requests_total",
				Help: "Total rank requests by result (ok, not_found, error).",
			},
			[]string{"result"},
		),
		RankLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rank_latency_seconds",
				Help:    "Rank request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		RankedDocumentsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ranked_documents_count",
				Help:    "Number of documents ranked per request.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		ModelCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "model_cache_hits_total",
				Help: "Total number of model cache hits.",
			},
		),
		ModelCacheMissTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "model_cache_misses_total",
				Help: "Total number of model cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.TrainingJobsTotal,
		m.TrainingDuration,
		m.TrainingRoundsTotal,
		m.TrainingScore,
		m.DegenerateQueriesTotal,
		m.ConfidenceClampsTotal,
		m.RankRequestsTotal,
		m.RankLatency,
		m.RankedDocumentsCount,
		m.ModelCacheHitsTotal,
		m.ModelCacheMissTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
