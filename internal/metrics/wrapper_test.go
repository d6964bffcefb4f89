package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestWrapper() (*Metrics, *MetricsWrapper) {
	m := NewWithRegistry(prometheus.NewRegistry())
	return m, NewWrapper(m)
}

func TestNewWrapper(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_PredictionCounters(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.PredictionsInc("Normal")
	wrapper.PredictionsInc("Normal")
	wrapper.PredictionsInc("Mild Anemia")

	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Normal")); v != 2 {
		t.Errorf("Expected 2 Normal predictions, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Mild Anemia")); v != 1 {
		t.Errorf("Expected 1 Mild Anemia prediction, got %f", v)
	}

	wrapper.FailuresInc(FailureValidation)
	if v := testutil.ToFloat64(metrics.PredictionFailures.WithLabelValues(FailureValidation)); v != 1 {
		t.Errorf("Expected 1 validation failure, got %f", v)
	}

	wrapper.CacheHitsInc()
	wrapper.CacheMissesInc()
	wrapper.CacheMissesInc()
	if v := testutil.ToFloat64(metrics.CacheHits); v != 1 {
		t.Errorf("Expected 1 cache hit, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.CacheMisses); v != 2 {
		t.Errorf("Expected 2 cache misses, got %f", v)
	}
}

func TestMetricsWrapper_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	wrapper := NewWrapper(metrics)

	wrapper.LatencyObserve(0.002)
	wrapper.ConfidenceObserve(0.9)
	wrapper.ConfidenceObserve(1.0)
	wrapper.HemoglobinObserve(10.5)
	wrapper.Latency().Observe(0.004)

	if n := testutil.CollectAndCount(metrics.ConfidenceScores); n != 1 {
		t.Errorf("Expected one confidence histogram series, got %d", n)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	counts := map[string]uint64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[mf.GetName()] = h.GetSampleCount()
			}
		}
	}
	if counts["hemocheck_confidence_scores"] != 2 {
		t.Errorf("Expected 2 confidence observations, got %d", counts["hemocheck_confidence_scores"])
	}
	if counts["hemocheck_prediction_latency_seconds"] != 2 {
		t.Errorf("Expected 2 latency observations, got %d", counts["hemocheck_prediction_latency_seconds"])
	}
	if counts["hemocheck_hemoglobin_g_dl"] != 1 {
		t.Errorf("Expected 1 hemoglobin observation, got %d", counts["hemocheck_hemoglobin_g_dl"])
	}
}

func TestMetricsWrapper_HTTPAndRecords(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	wrapper.RequestObserve("/predict", "POST", 200, 0.01)
	wrapper.RequestObserve("/predict", "POST", 400, 0.001)
	wrapper.RateLimitedInc()
	wrapper.LedgerWriteInc("ok")
	wrapper.AuthAttemptInc("login", "invalid_credentials")
	wrapper.ErrorsInc()
	wrapper.Errors().Inc()

	if v := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("/predict", "POST", "400")); v != 1 {
		t.Errorf("Expected 1 bad request, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.RateLimited); v != 1 {
		t.Errorf("Expected 1 rate-limited request, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.LedgerWrites.WithLabelValues("ok")); v != 1 {
		t.Errorf("Expected 1 ledger write, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.AuthAttempts.WithLabelValues("login", "invalid_credentials")); v != 1 {
		t.Errorf("Expected 1 failed login, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ErrorsTotal); v != 2 {
		t.Errorf("Expected 2 errors, got %f", v)
	}
}

func TestMetricsWrapper_ModelGauges(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	metrics.SetModelState(true, 3600)
	if v := testutil.ToFloat64(metrics.ModelLoaded); v != 1 {
		t.Errorf("Expected model loaded gauge 1, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ModelAge); v != 3600 {
		t.Errorf("Expected model age 3600, got %f", v)
	}

	wrapper.ModelLoaded().Set(0)
	wrapper.ModelAge().Add(60)
	if v := testutil.ToFloat64(metrics.ModelLoaded); v != 0 {
		t.Errorf("Expected model loaded gauge 0, got %f", v)
	}
	if v := testutil.ToFloat64(metrics.ModelAge); v != 3660 {
		t.Errorf("Expected model age 3660, got %f", v)
	}
}

func TestMetrics_GetErrorRate(t *testing.T) {
	_, wrapper := newTestWrapper()

	if rate := wrapper.ErrorRate(); rate != 0 {
		t.Errorf("Expected error rate 0 with no traffic, got %f", rate)
	}

	wrapper.PredictionsInc("Normal")
	wrapper.PredictionsInc("Severe Anemia")
	wrapper.PredictionsInc("Normal")
	wrapper.FailuresInc(FailureInference)

	if rate := wrapper.ErrorRate(); rate != 0.25 {
		t.Errorf("Expected error rate 0.25, got %f", rate)
	}
}

func TestCounterWrapper_DirectUsage(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "Test counter for unit tests",
	})

	wrapper := &CounterWrapper{c: counter}

	wrapper.Inc()
	value := testutil.ToFloat64(counter)
	if value != 1 {
		t.Errorf("Expected counter value 1, got %f", value)
	}
}

func TestGaugeWrapper_DirectUsage(t *testing.T) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "Test gauge for unit tests",
	})

	wrapper := &GaugeWrapper{g: gauge}

	wrapper.Set(42.0)
	value := testutil.ToFloat64(gauge)
	if value != 42.0 {
		t.Errorf("Expected gauge value 42.0, got %f", value)
	}

	wrapper.Add(8.0)
	newValue := testutil.ToFloat64(gauge)
	if newValue != 50.0 {
		t.Errorf("Expected gauge value 50.0 after add, got %f", newValue)
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	metrics, wrapper := newTestWrapper()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.PredictionsInc("Normal")
				wrapper.LatencyObserve(0.01)
				wrapper.CacheMissesInc()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	expected := 1000.0 // 10 goroutines * 100 increments
	if v := testutil.ToFloat64(metrics.Predictions.WithLabelValues("Normal")); v != expected {
		t.Errorf("Expected %f predictions after concurrent access, got %f", expected, v)
	}
	if v := testutil.ToFloat64(metrics.CacheMisses); v != expected {
		t.Errorf("Expected %f cache misses after concurrent access, got %f", expected, v)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	wrapper := &MetricsWrapper{m: nil}

	// NewWrapper ensures m is never nil; a hand-built wrapper panics.
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.PredictionsInc("Normal")
}

func BenchmarkMetricsWrapper_PredictionsInc(b *testing.B) {
	_, wrapper := newTestWrapper()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.PredictionsInc("Normal")
	}
}

func BenchmarkMetricsWrapper_LatencyObserve(b *testing.B) {
	_, wrapper := newTestWrapper()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.LatencyObserve(0.01)
	}
}
