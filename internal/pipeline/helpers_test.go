package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"hemocheck/internal/features"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	failures    map[string]int
	latencies   []float64
	confidences []float64
	hemoglobin  []float64
	cacheHits   int
	cacheMisses int
}

func newMockMetrics() *MockMetrics {
	return &MockMetrics{predictions: map[string]int{}, failures: map[string]int{}}
}

func (m *MockMetrics) PredictionsInc(class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[class]++
}

func (m *MockMetrics) FailuresInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[kind]++
}

func (m *MockMetrics) LatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, v)
}

func (m *MockMetrics) ConfidenceObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidences = append(m.confidences, v)
}

func (m *MockMetrics) HemoglobinObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hemoglobin = append(m.hemoglobin, v)
}

func (m *MockMetrics) CacheHitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheHits++
}

func (m *MockMetrics) CacheMissesInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheMisses++
}

type identityScaler struct {
	err      error
	panicVal any
}

func (s identityScaler) Transform(v features.Vector) ([]float64, error) {
	if s.panicVal != nil {
		panic(s.panicVal)
	}
	if s.err != nil {
		return nil, s.err
	}
	return v.Slice(), nil
}

// stubRegressor returns a fixed value and counts Predict calls.
type stubRegressor struct {
	value    float64
	err      error
	panicVal any
	calls    atomic.Int64
}

func (r *stubRegressor) NumFeatures() int { return features.NumFeatures }

func (r *stubRegressor) Predict(x []float64) (float64, error) {
	r.calls.Add(1)
	if r.panicVal != nil {
		panic(r.panicVal)
	}
	return r.value, r.err
}

// reportingRegressor reports its own confidence.
type reportingRegressor struct {
	stubRegressor
	confidence float64
	confErr    error
	confPanic  bool
}

func (r *reportingRegressor) Confidence(x []float64) (float64, error) {
	if r.confPanic {
		panic("confidence exploded")
	}
	return r.confidence, r.confErr
}

// faultyStore fails every operation.
type faultyStore struct{}

var errStoreDown = errors.New("store down")

func (faultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errStoreDown
}

func (faultyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errStoreDown
}

func (faultyStore) Delete(ctx context.Context, key string) error {
	return errStoreDown
}

func samplePanel() map[string]any {
	return map[string]any{
		"age":            45.0,
		"gender":         "female",
		"platelet_count": 250000.0,
		"wbc":            7.2,
		"rbc":            4.1,
		"mcv":            85.0,
		"mch":            28.0,
		"mchc":           33.0,
	}
}
