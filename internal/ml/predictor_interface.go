// Package ml loads the externally-trained scaler and regressor artifacts and
// evaluates them natively. Artifacts are JSON documents exported after
// training; they are read once at process start into an immutable
// ModelContext that is safe for concurrent use without locking.
//
// The package also owns the confidence signal: regressors may report their own
// confidence, and those that cannot are measured by repeated evaluation.
package ml

import "hemocheck/internal/features"

// Scaler is a pre-fit transform applied to the feature vector before
// inference. Implementations must be pure and safe for concurrent use.
type Scaler interface {
	Transform(v features.Vector) ([]float64, error)
}

// Regressor maps a scaled feature vector to a single hemoglobin estimate.
// Implementations must be safe for concurrent use.
type Regressor interface {
	Predict(x []float64) (float64, error)
	// NumFeatures is the input width the regressor was fit with.
	NumFeatures() int
}

// ConfidenceReporter is implemented by regressors that can describe the
// spread of their own prediction for x. The value must lie in [0, 1].
type ConfidenceReporter interface {
	Confidence(x []float64) (float64, error)
}
