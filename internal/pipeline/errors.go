package pipeline

import (
	"errors"
	"fmt"

	"hemocheck/internal/ml"
)

// ErrModelUnavailable is returned by every Run on a pipeline built over a
// model context that failed to load. It wraps ml.ErrModelUnavailable.
var ErrModelUnavailable = fmt.Errorf("pipeline: %w", ml.ErrModelUnavailable)

// ErrNonFiniteEstimate marks a regressor output that is NaN or infinite.
var ErrNonFiniteEstimate = errors.New("non-finite hemoglobin estimate")

// Inference stages reported in InferenceError.
const (
	StageScale      = "scale"
	StagePredict    = "predict"
	StageConfidence = "confidence"
)

// InferenceError wraps a failure inside the scaler, the regressor or the
// confidence estimator. It is never retried.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed at %s: %v", e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// panicError carries a recovered panic value as an error.
type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
