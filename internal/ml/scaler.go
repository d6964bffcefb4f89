package ml

import (
	"fmt"
	"math"

	"hemocheck/internal/features"
)

// StandardScaler applies (x - mean) / scale per feature, matching a
// standardization transform fit offline.
type StandardScaler struct {
	mean  [features.NumFeatures]float64
	scale [features.NumFeatures]float64
}

// NewStandardScaler validates the fitted parameters. Every scale entry must be
// finite and non-zero.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) != features.NumFeatures {
		return nil, fmt.Errorf("scaler mean has %d entries, expected %d", len(mean), features.NumFeatures)
	}
	if len(scale) != features.NumFeatures {
		return nil, fmt.Errorf("scaler scale has %d entries, expected %d", len(scale), features.NumFeatures)
	}

	s := &StandardScaler{}
	for i := 0; i < features.NumFeatures; i++ {
		if !isFinite(mean[i]) {
			return nil, fmt.Errorf("scaler mean[%d] is not finite", i)
		}
		if !isFinite(scale[i]) || scale[i] == 0 {
			return nil, fmt.Errorf("scaler scale[%d] must be finite and non-zero, got %v", i, scale[i])
		}
		s.mean[i] = mean[i]
		s.scale[i] = scale[i]
	}
	return s, nil
}

func (s *StandardScaler) Transform(v features.Vector) ([]float64, error) {
	out := make([]float64, features.NumFeatures)
	for i, x := range v {
		out[i] = (x - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
