package pipeline

import (
	"sync"
	"time"
)

// HealthStatus summarizes pipeline state for the health endpoint.
type HealthStatus struct {
	Healthy         bool      `json:"healthy"`
	LastCheck       time.Time `json:"last_check"`
	ModelLoaded     bool      `json:"model_loaded"`
	AverageLatency  float64   `json:"average_latency_ms"`
	PredictionCount int64     `json:"prediction_count"`
	ErrorRate       float64   `json:"error_rate"`
	CacheHitRate    float64   `json:"cache_hit_rate"`
	LastError       string    `json:"last_error,omitempty"`
	ModelVersion    string    `json:"model_version"`
	ModelAgeSeconds float64   `json:"model_age_seconds"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
}

// performanceStats counts pipeline outcomes. Validation failures are the
// caller's fault and are not counted as errors.
type performanceStats struct {
	mu           sync.RWMutex
	predictions  int64
	errors       int64
	cacheHits    int64
	cacheMisses  int64
	totalLatency time.Duration
	startTime    time.Time
	lastError    string
}

func newPerformanceStats() *performanceStats {
	return &performanceStats{startTime: time.Now()}
}

func (s *performanceStats) recordPrediction(d time.Duration) {
	s.mu.Lock()
	s.predictions++
	s.totalLatency += d
	s.mu.Unlock()
}

func (s *performanceStats) recordError(err error) {
	s.mu.Lock()
	s.errors++
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *performanceStats) recordCacheHit() {
	s.mu.Lock()
	s.cacheHits++
	s.mu.Unlock()
}

func (s *performanceStats) recordCacheMiss() {
	s.mu.Lock()
	s.cacheMisses++
	s.mu.Unlock()
}

func (s *performanceStats) snapshot(modelLoaded bool, modelVersion string, modelAge time.Duration) HealthStatus {
	s.mu.RLock()
	predictions := s.predictions
	errors := s.errors
	cacheHits := s.cacheHits
	cacheMisses := s.cacheMisses
	totalLatency := s.totalLatency
	lastError := s.lastError
	uptime := time.Since(s.startTime)
	s.mu.RUnlock()

	var avgLatency float64
	if predictions > 0 {
		avgLatency = float64(totalLatency.Microseconds()) / 1000 / float64(predictions)
	}

	var errorRate float64
	if attempts := predictions + errors; attempts > 0 {
		errorRate = float64(errors) / float64(attempts)
	}

	var cacheHitRate float64
	totalCacheAccess := cacheHits + cacheMisses
	if totalCacheAccess > 0 {
		cacheHitRate = float64(cacheHits) / float64(totalCacheAccess)
	}

	return HealthStatus{
		Healthy:         modelLoaded,
		LastCheck:       time.Now(),
		ModelLoaded:     modelLoaded,
		AverageLatency:  avgLatency,
		PredictionCount: predictions,
		ErrorRate:       errorRate,
		CacheHitRate:    cacheHitRate,
		LastError:       lastError,
		ModelVersion:    modelVersion,
		ModelAgeSeconds: modelAge.Seconds(),
		UptimeSeconds:   uptime.Seconds(),
	}
}
