// Package metrics provides Prometheus metrics collection for the hemocheck service.
// It defines the prediction, model, ledger and HTTP metrics that are exposed via
// the Prometheus metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hemocheck"

// Failure kinds used as the "kind" label on PredictionFailures.
const (
	FailureValidation       = "validation"
	FailureModelUnavailable = "model_unavailable"
	FailureInference        = "inference"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction pipeline metrics
	Predictions        *prometheus.CounterVec // Successful predictions by anemia class
	PredictionFailures *prometheus.CounterVec // Failed predictions by failure kind
	PredictionLatency  prometheus.Histogram   // End-to-end pipeline latency in seconds
	ConfidenceScores   prometheus.Histogram   // Distribution of confidence scores
	HemoglobinLevels   prometheus.Histogram   // Distribution of predicted hemoglobin (g/dL)
	CacheHits          prometheus.Counter     // Prediction cache hits
	CacheMisses        prometheus.Counter     // Prediction cache misses

	// Model metrics
	ModelAge    prometheus.Gauge // Age of the loaded model artifacts in seconds
	ModelLoaded prometheus.Gauge // 1 when the model context is available

	// Records metrics
	LedgerWrites *prometheus.CounterVec // Ledger appends by outcome
	AuthAttempts *prometheus.CounterVec // Signup/login attempts by operation and outcome

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route, method and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route
	RateLimited  prometheus.Counter       // Requests rejected by the rate limiter

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of internal errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Total number of successful predictions by anemia class",
		}, []string{"class"}),
		PredictionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_failures_total",
			Help:      "Total number of failed predictions by failure kind",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_latency_seconds",
			Help:      "Prediction pipeline latency in seconds (end-to-end)",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ConfidenceScores: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_scores",
			Help:      "Distribution of prediction confidence scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		HemoglobinLevels: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hemoglobin_g_dl",
			Help:      "Distribution of predicted hemoglobin levels in g/dL",
			Buckets:   prometheus.LinearBuckets(4, 1, 16),
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_hits_total",
			Help:      "Total number of prediction cache hits",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_misses_total",
			Help:      "Total number of prediction cache misses",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_age_seconds",
			Help:      "Age of the loaded model artifacts in seconds",
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_loaded",
			Help:      "Whether the model artifacts are loaded (1) or unavailable (0)",
		}),
		LedgerWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Total number of prediction ledger appends by outcome",
		}, []string{"outcome"}),
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of signup and login attempts by outcome",
		}, []string{"op", "outcome"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"route"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of internal errors encountered",
		}),
		gatherer: gatherer,
	}
}

// SetModelState updates the model gauges from the loaded context's state.
func (m *Metrics) SetModelState(loaded bool, ageSeconds float64) {
	if loaded {
		m.ModelLoaded.Set(1)
	} else {
		m.ModelLoaded.Set(0)
	}
	m.ModelAge.Set(ageSeconds)
}

// GetErrorRate returns failed predictions over all prediction attempts, or 0
// if nothing has been recorded yet.
func (m *Metrics) GetErrorRate() float64 {
	var successes, failures float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case namespace + "_predictions_total":
			for _, metric := range mf.GetMetric() {
				successes += metric.GetCounter().GetValue()
			}
		case namespace + "_prediction_failures_total":
			for _, metric := range mf.GetMetric() {
				failures += metric.GetCounter().GetValue()
			}
		}
	}

	// Avoid division by zero
	total := successes + failures
	if total == 0 {
		return 0
	}

	return failures / total
}
