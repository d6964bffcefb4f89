package ml

import (
	"fmt"
	"math"
)

// DefaultConfidenceSamples is the repeat count used when none is configured.
const DefaultConfidenceSamples = 5

// RepeatedEstimator measures confidence by evaluating the regressor several
// times on the same input: confidence = clamp(1 - std, 0, 1).
//
// This only carries information for models with internal randomness. A
// deterministic model always scores 1. Treat the value as a rough signal, not
// a calibrated probability.
type RepeatedEstimator struct {
	Samples int
}

func (e RepeatedEstimator) Estimate(r Regressor, x []float64) (float64, error) {
	n := e.Samples
	if n < 1 {
		n = DefaultConfidenceSamples
	}

	preds := make([]float64, n)
	for i := range preds {
		y, err := r.Predict(x)
		if err != nil {
			return 0, fmt.Errorf("confidence sample %d: %w", i, err)
		}
		preds[i] = y
	}
	return ConfidenceFromStdDev(stdDev(preds)), nil
}

// EstimateConfidence prefers the regressor's own ConfidenceReporter and falls
// back to a RepeatedEstimator with the given sample count.
func EstimateConfidence(r Regressor, x []float64, samples int) (float64, error) {
	if cr, ok := r.(ConfidenceReporter); ok {
		c, err := cr.Confidence(x)
		if err != nil {
			return 0, err
		}
		return Clamp(c), nil
	}
	return RepeatedEstimator{Samples: samples}.Estimate(r, x)
}

// ConfidenceFromStdDev maps a spread to [0, 1]. A non-finite spread is no
// confidence at all.
func ConfidenceFromStdDev(std float64) float64 {
	if math.IsNaN(std) || math.IsInf(std, 0) {
		return 0
	}
	return Clamp(1 - std)
}

// Clamp ensures confidence is in valid range [0, 1].
func Clamp(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// stdDev is the population standard deviation.
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
