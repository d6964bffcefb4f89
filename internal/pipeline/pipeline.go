// Package pipeline composes feature building, scaling, regression, confidence
// estimation and classification into one prediction call.
//
// A Pipeline holds no per-request state. The model context it is built over is
// read-only, so Run may be called from any number of goroutines.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hemocheck/internal/anemia"
	"hemocheck/internal/cache"
	"hemocheck/internal/features"
	"hemocheck/internal/metrics"
	"hemocheck/internal/ml"
)

// MetricsInterface is the subset of metrics the pipeline reports.
type MetricsInterface interface {
	PredictionsInc(class string)
	FailuresInc(kind string)
	LatencyObserve(seconds float64)
	ConfidenceObserve(v float64)
	HemoglobinObserve(v float64)
	CacheHitsInc()
	CacheMissesInc()
}

// Result is the outcome of a successful prediction.
type Result struct {
	Hemoglobin float64      `json:"hemoglobin"`
	Class      anemia.Class `json:"anemia_class"`
	Confidence float64      `json:"confidence"`
}

// Pipeline runs predictions against a fixed model context.
type Pipeline struct {
	models            *ml.ModelContext
	builder           features.Builder
	confidenceSamples int
	cache             cache.Store
	cacheTTL          time.Duration
	metrics           MetricsInterface
	stats             *performanceStats

	// cacheNamespace keeps entries from other models or gender modes apart.
	cacheNamespace string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStrictGender rejects genders other than male/female.
func WithStrictGender(strict bool) Option {
	return func(p *Pipeline) { p.builder.Strict = strict }
}

// WithConfidenceSamples sets the repeat count for regressors that cannot
// report their own confidence.
func WithConfidenceSamples(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.confidenceSamples = n
		}
	}
}

// WithCache enables result caching keyed by feature vector.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.cache = store
		p.cacheTTL = ttl
	}
}

// WithMetrics reports outcomes to m.
func WithMetrics(m MetricsInterface) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New builds a pipeline over models. A nil or unavailable context yields a
// pipeline whose every Run fails with ErrModelUnavailable.
func New(models *ml.ModelContext, opts ...Option) *Pipeline {
	p := &Pipeline{
		models:            models,
		confidenceSamples: ml.DefaultConfidenceSamples,
		stats:             newPerformanceStats(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.cacheNamespace = models.ID() + "|strict=" + strconv.FormatBool(p.builder.Strict)
	return p
}

// Run validates raw, predicts hemoglobin and classifies it. On error the
// Result is the zero value.
func (p *Pipeline) Run(ctx context.Context, raw map[string]any) (Result, error) {
	start := time.Now()

	if err := p.models.Err(); err != nil {
		err = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		p.fail(metrics.FailureModelUnavailable, err)
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	panel, err := p.builder.Build(raw)
	if err != nil {
		p.fail(metrics.FailureValidation, nil)
		return Result{}, err
	}

	key := cache.Key(p.cacheNamespace, panel.Vector)
	if res, ok := p.lookup(ctx, key); ok {
		p.succeed(res, time.Since(start))
		return res, nil
	}

	res, err := p.infer(panel)
	if err != nil {
		p.fail(metrics.FailureInference, err)
		log.Error().Err(err).Msg("prediction failed")
		return Result{}, err
	}

	p.store(ctx, key, res)
	p.succeed(res, time.Since(start))
	return res, nil
}

// infer runs scale, predict, then classify and confidence concurrently.
func (p *Pipeline) infer(panel features.Panel) (res Result, err error) {
	stage := StageScale
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &InferenceError{Stage: stage, Err: panicError{value: r}}
		}
	}()

	scaler := p.models.Scaler()
	regressor := p.models.Regressor()

	x, err := scaler.Transform(panel.Vector)
	if err != nil {
		return Result{}, &InferenceError{Stage: StageScale, Err: err}
	}

	stage = StagePredict
	hb, err := regressor.Predict(x)
	if err != nil {
		return Result{}, &InferenceError{Stage: StagePredict, Err: err}
	}
	if math.IsNaN(hb) || math.IsInf(hb, 0) {
		return Result{}, &InferenceError{Stage: StagePredict, Err: ErrNonFiniteEstimate}
	}

	var (
		wg         sync.WaitGroup
		confidence float64
		confErr    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				confErr = panicError{value: r}
			}
		}()
		confidence, confErr = ml.EstimateConfidence(regressor, x, p.confidenceSamples)
	}()

	class := anemia.Classify(hb, panel.Gender)
	wg.Wait()

	if confErr != nil {
		return Result{}, &InferenceError{Stage: StageConfidence, Err: confErr}
	}

	return Result{
		Hemoglobin: hb,
		Class:      class,
		Confidence: ml.Clamp(confidence),
	}, nil
}

func (p *Pipeline) lookup(ctx context.Context, key string) (Result, bool) {
	if p.cache == nil {
		return Result{}, false
	}

	data, found, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("prediction cache read failed")
	}
	if err != nil || !found {
		p.stats.recordCacheMiss()
		if p.metrics != nil {
			p.metrics.CacheMissesInc()
		}
		return Result{}, false
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		log.Warn().Err(err).Msg("discarding undecodable cache entry")
		_ = p.cache.Delete(ctx, key)
		p.stats.recordCacheMiss()
		if p.metrics != nil {
			p.metrics.CacheMissesInc()
		}
		return Result{}, false
	}

	p.stats.recordCacheHit()
	if p.metrics != nil {
		p.metrics.CacheHitsInc()
	}
	return res, true
}

func (p *Pipeline) store(ctx context.Context, key string, res Result) {
	if p.cache == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		log.Warn().Err(err).Msg("prediction cache encode failed")
		return
	}
	if err := p.cache.Set(ctx, key, data, p.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("prediction cache write failed")
	}
}

func (p *Pipeline) succeed(res Result, d time.Duration) {
	p.stats.recordPrediction(d)
	if p.metrics == nil {
		return
	}
	p.metrics.PredictionsInc(res.Class.String())
	p.metrics.LatencyObserve(d.Seconds())
	p.metrics.ConfidenceObserve(res.Confidence)
	p.metrics.HemoglobinObserve(res.Hemoglobin)
}

// fail records a failure. A nil err marks a client error that does not count
// against the error rate.
func (p *Pipeline) fail(kind string, err error) {
	if err != nil {
		p.stats.recordError(err)
	}
	if p.metrics != nil {
		p.metrics.FailuresInc(kind)
	}
}

// Health reports model availability and pipeline statistics.
func (p *Pipeline) Health() HealthStatus {
	version := "unknown"
	if md := p.models.Metadata(); md != nil {
		version = md.Version
	}
	return p.stats.snapshot(p.models.Available(), version, p.models.Age())
}

// Models returns the context the pipeline was built over.
func (p *Pipeline) Models() *ml.ModelContext {
	return p.models
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *features.ValidationError
	return errors.As(err, &ve)
}
