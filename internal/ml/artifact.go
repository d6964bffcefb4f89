package ml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"hemocheck/internal/features"
)

// Artifact file names inside a model directory.
const (
	ScalerFile    = "scaler.json"
	RegressorFile = "regressor.json"
	MetadataFile  = "model_metadata.json"
)

// Regressor kinds accepted in regressor.json.
const (
	KindLinear       = "linear"
	KindTreeEnsemble = "tree_ensemble"
	KindStandard     = "standard"
)

// ErrModelUnavailable means the scaler/regressor artifacts could not be loaded.
// It is fatal for the process lifetime: no inference is attempted.
var ErrModelUnavailable = errors.New("model unavailable")

// ScalerArtifact is the on-disk form of a fitted scaler.
type ScalerArtifact struct {
	Kind         string    `json:"kind"`
	FeatureNames []string  `json:"feature_names,omitempty"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// RegressorArtifact is the on-disk form of a fitted regressor.
type RegressorArtifact struct {
	Kind         string      `json:"kind"`
	FeatureNames []string    `json:"feature_names,omitempty"`
	Intercept    float64     `json:"intercept,omitempty"`
	Coefficients []float64   `json:"coefficients,omitempty"`
	Aggregation  Aggregation `json:"aggregation,omitempty"`
	BaseScore    float64     `json:"base_score,omitempty"`
	Trees        []Tree      `json:"trees,omitempty"`
}

// Build constructs the scaler described by the artifact.
func (a ScalerArtifact) Build() (Scaler, error) {
	if err := checkFeatureNames(a.FeatureNames); err != nil {
		return nil, err
	}
	switch a.Kind {
	case KindStandard, "":
		return NewStandardScaler(a.Mean, a.Scale)
	default:
		return nil, fmt.Errorf("unsupported scaler kind %q", a.Kind)
	}
}

// Build constructs the regressor described by the artifact.
func (a RegressorArtifact) Build() (Regressor, error) {
	if err := checkFeatureNames(a.FeatureNames); err != nil {
		return nil, err
	}

	var (
		r   Regressor
		err error
	)
	switch a.Kind {
	case KindLinear:
		r, err = NewLinearRegressor(a.Intercept, a.Coefficients)
	case KindTreeEnsemble:
		agg := a.Aggregation
		if agg == "" {
			agg = AggregateSum
		}
		r, err = NewTreeEnsemble(agg, a.BaseScore, features.NumFeatures, a.Trees)
	default:
		return nil, fmt.Errorf("unsupported regressor kind %q", a.Kind)
	}
	if err != nil {
		return nil, err
	}
	if r.NumFeatures() != features.NumFeatures {
		return nil, fmt.Errorf("regressor expects %d features, vector has %d", r.NumFeatures(), features.NumFeatures)
	}
	return r, nil
}

// checkFeatureNames enforces the vector order the artifact was fit with.
// Artifacts that omit the names are trusted on width alone.
func checkFeatureNames(names []string) error {
	if len(names) == 0 {
		return nil
	}
	if len(names) != features.NumFeatures {
		return fmt.Errorf("artifact declares %d features, expected %d", len(names), features.NumFeatures)
	}
	for i, name := range names {
		if name != features.Order[i] {
			return fmt.Errorf("feature %d is %q in artifact, expected %q", i, name, features.Order[i])
		}
	}
	return nil
}

// Load reads scaler.json, regressor.json and the optional metadata from dir.
// Every failure wraps ErrModelUnavailable.
func Load(dir string) (*ModelContext, error) {
	var sa ScalerArtifact
	scalerRaw, err := readJSON(filepath.Join(dir, ScalerFile), &sa)
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %v", ErrModelUnavailable, err)
	}
	scaler, err := sa.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: scaler: %v", ErrModelUnavailable, err)
	}

	var ra RegressorArtifact
	regressorRaw, err := readJSON(filepath.Join(dir, RegressorFile), &ra)
	if err != nil {
		return nil, fmt.Errorf("%w: regressor: %v", ErrModelUnavailable, err)
	}
	regressor, err := ra.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: regressor: %v", ErrModelUnavailable, err)
	}

	metadata, err := loadModelMetadata(dir)
	if err != nil {
		metadata = defaultMetadata(ra.Kind)
	}

	var modelCreated = metadata.TrainedAt
	if info, err := os.Stat(filepath.Join(dir, RegressorFile)); err == nil && modelCreated.IsZero() {
		modelCreated = info.ModTime()
	}

	id := artifactID(scalerRaw, regressorRaw)
	return newModelContext(id, dir, scaler, regressor, metadata, modelCreated), nil
}

// artifactSpace namespaces the content-derived model ids.
var artifactSpace = uuid.MustParse("1d0f6a52-8c3e-5b7a-9e41-7f2a6c0d3b18")

// artifactID is derived from the artifact bytes, so processes serving the
// same files agree on it and any retrain changes it.
func artifactID(scaler, regressor []byte) string {
	buf := make([]byte, 0, len(scaler)+1+len(regressor))
	buf = append(buf, scaler...)
	buf = append(buf, 0)
	buf = append(buf, regressor...)
	return uuid.NewSHA1(artifactSpace, buf).String()
}

// readJSON decodes path into dst and returns the raw bytes.
func readJSON(path string, dst any) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return data, nil
}
