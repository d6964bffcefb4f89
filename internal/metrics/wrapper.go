package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces the pipeline and the
// HTTP layer depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Pipeline metrics

func (w *MetricsWrapper) PredictionsInc(class string) {
	w.m.Predictions.WithLabelValues(class).Inc()
}

func (w *MetricsWrapper) FailuresInc(kind string) {
	w.m.PredictionFailures.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) LatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) ConfidenceObserve(v float64) {
	w.m.ConfidenceScores.Observe(v)
}

func (w *MetricsWrapper) HemoglobinObserve(v float64) {
	w.m.HemoglobinLevels.Observe(v)
}

func (w *MetricsWrapper) CacheHitsInc() {
	w.m.CacheHits.Inc()
}

func (w *MetricsWrapper) CacheMissesInc() {
	w.m.CacheMisses.Inc()
}

// HTTP and records metrics

func (w *MetricsWrapper) RequestObserve(route, method string, status int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

func (w *MetricsWrapper) RateLimitedInc() {
	w.m.RateLimited.Inc()
}

func (w *MetricsWrapper) LedgerWriteInc(outcome string) {
	w.m.LedgerWrites.WithLabelValues(outcome).Inc()
}

func (w *MetricsWrapper) AuthAttemptInc(op, outcome string) {
	w.m.AuthAttempts.WithLabelValues(op, outcome).Inc()
}

func (w *MetricsWrapper) ErrorsInc() {
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) ErrorRate() float64 {
	return w.m.GetErrorRate()
}

// Raw handles

func (w *MetricsWrapper) ModelAge() MetricsGauge {
	return &GaugeWrapper{w.m.ModelAge}
}

func (w *MetricsWrapper) ModelLoaded() MetricsGauge {
	return &GaugeWrapper{w.m.ModelLoaded}
}

func (w *MetricsWrapper) Errors() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

func (w *MetricsWrapper) Latency() MetricsHistogram {
	return &HistogramWrapper{w.m.PredictionLatency}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}
