package ml

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemocheck/internal/features"
)

func identityScaler() ScalerArtifact {
	return ScalerArtifact{
		Kind:         KindStandard,
		FeatureNames: features.Order[:],
		Mean:         make([]float64, features.NumFeatures),
		Scale:        []float64{1, 1, 1, 1, 1, 1, 1, 1},
	}
}

func constantLinear(intercept float64) RegressorArtifact {
	return RegressorArtifact{
		Kind:         KindLinear,
		FeatureNames: features.Order[:],
		Intercept:    intercept,
		Coefficients: make([]float64, features.NumFeatures),
	}
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writeArtifacts(t *testing.T, dir string, scaler, regressor any) {
	t.Helper()
	if scaler != nil {
		writeJSONFile(t, filepath.Join(dir, ScalerFile), scaler)
	}
	if regressor != nil {
		writeJSONFile(t, filepath.Join(dir, RegressorFile), regressor)
	}
}

func TestLoad_Linear(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, identityScaler(), constantLinear(10.5))

	mc, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, mc.Available())
	assert.NoError(t, mc.Err())
	assert.Equal(t, dir, mc.Dir())

	x, err := mc.Scaler().Transform(features.Vector{30, 1, 250, 7, 4.5, 90, 30, 33})
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 1, 250, 7, 4.5, 90, 30, 33}, x)

	y, err := mc.Regressor().Predict(x)
	require.NoError(t, err)
	assert.Equal(t, 10.5, y)

	md := mc.Metadata()
	require.NotNil(t, md)
	assert.Equal(t, "unknown", md.Version)
	assert.Equal(t, KindLinear, md.Algorithm)
}

func TestLoad_TreeEnsemble(t *testing.T) {
	dir := t.TempDir()
	writeArtifacts(t, dir, identityScaler(), RegressorArtifact{
		Kind:        KindTreeEnsemble,
		Aggregation: AggregateMean,
		Trees:       []Tree{stump(10, 14), stump(11, 14)},
	})

	mc, err := Load(dir)
	require.NoError(t, err)

	x := make([]float64, features.NumFeatures)
	y, err := mc.Regressor().Predict(x)
	require.NoError(t, err)
	assert.InDelta(t, 10.5, y, 1e-12)

	c, err := EstimateConfidence(mc.Regressor(), x, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, c, 1e-12)
}

func TestLoad_Failures(t *testing.T) {
	badScale := identityScaler()
	badScale.Scale[3] = 0

	reordered := identityScaler()
	reordered.FeatureNames = append([]string(nil), features.Order[:]...)
	reordered.FeatureNames[0], reordered.FeatureNames[1] = reordered.FeatureNames[1], reordered.FeatureNames[0]

	shortLinear := constantLinear(1)
	shortLinear.Coefficients = []float64{1, 2, 3}

	tests := []struct {
		name      string
		scaler    any
		regressor any
	}{
		{"missing scaler", nil, constantLinear(1)},
		{"missing regressor", identityScaler(), nil},
		{"zero scale", badScale, constantLinear(1)},
		{"feature order mismatch", reordered, constantLinear(1)},
		{"wrong regressor width", identityScaler(), shortLinear},
		{"unknown regressor kind", identityScaler(), map[string]any{"kind": "svm"}},
		{"unknown scaler kind", map[string]any{"kind": "minmax"}, constantLinear(1)},
		{"unknown field", identityScaler(), map[string]any{"kind": "linear", "weights": []float64{1}}},
		{"bad tree", identityScaler(), RegressorArtifact{
			Kind:  KindTreeEnsemble,
			Trees: []Tree{{Nodes: []TreeNode{{Feature: 9, Yes: 1, No: 2}, leaf(1), leaf(2)}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeArtifacts(t, dir, tt.scaler, tt.regressor)

			mc, err := Load(dir)
			assert.Nil(t, mc)
			assert.True(t, errors.Is(err, ErrModelUnavailable), "got %v", err)
		})
	}
}

func TestLoad_Metadata(t *testing.T) {
	trained := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("primary file", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, identityScaler(), constantLinear(1))
		writeJSONFile(t, filepath.Join(dir, MetadataFile), ModelMetadata{
			Version:        "v3",
			Algorithm:      "ridge",
			TrainedAt:      trained,
			TrainingRows:   1200,
			ValidationRMSE: 0.61,
		})

		mc, err := Load(dir)
		require.NoError(t, err)
		md := mc.Metadata()
		assert.Equal(t, "v3", md.Version)
		assert.Equal(t, "ridge", md.Algorithm)
		assert.Equal(t, 1200, md.TrainingRows)
		assert.Equal(t, features.Order[:], md.Features)
		assert.Greater(t, mc.Age(), 24*time.Hour)
	})

	t.Run("newest timestamped file", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, identityScaler(), constantLinear(1))
		writeJSONFile(t, filepath.Join(dir, "model_metadata_20240101.json"), ModelMetadata{Version: "old"})
		writeJSONFile(t, filepath.Join(dir, "model_metadata_20240202.json"), ModelMetadata{Version: "new"})

		mc, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "new", mc.Metadata().Version)
	})

	t.Run("corrupt metadata is not fatal", func(t *testing.T) {
		dir := t.TempDir()
		writeArtifacts(t, dir, identityScaler(), constantLinear(1))
		require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("{"), 0o644))

		mc, err := Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "unknown", mc.Metadata().Version)
	})
}

func TestModelContext_Unavailable(t *testing.T) {
	cause := errors.New("disk on fire")
	mc := Unavailable(cause)

	assert.False(t, mc.Available())
	err := mc.Err()
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Nil(t, mc.Metadata())

	var nilCtx *ModelContext
	assert.False(t, nilCtx.Available())
	assert.ErrorIs(t, nilCtx.Err(), ErrModelUnavailable)
}

func TestModelContext_Close(t *testing.T) {
	scaler, err := identityScaler().Build()
	require.NoError(t, err)
	regressor, err := constantLinear(1).Build()
	require.NoError(t, err)

	mc, err := NewModelContext(scaler, regressor, nil)
	require.NoError(t, err)
	assert.True(t, mc.Available())

	mc.Close()
	assert.False(t, mc.Available())
	assert.ErrorIs(t, mc.Err(), ErrModelUnavailable)
}

func TestNewModelContext_RequiresComponents(t *testing.T) {
	_, err := NewModelContext(nil, nil, nil)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestModelContext_MetadataIsCopy(t *testing.T) {
	scaler, _ := identityScaler().Build()
	regressor, _ := constantLinear(1).Build()
	mc, err := NewModelContext(scaler, regressor, &ModelMetadata{Version: "v1", Features: []string{"a"}})
	require.NoError(t, err)

	md := mc.Metadata()
	md.Version = "mutated"
	md.Features[0] = "b"

	assert.Equal(t, "v1", mc.Metadata().Version)
	assert.Equal(t, []string{"a"}, mc.Metadata().Features)
}

func TestModelContext_ID(t *testing.T) {
	dirA, dirB, dirC := t.TempDir(), t.TempDir(), t.TempDir()
	writeArtifacts(t, dirA, identityScaler(), constantLinear(7))
	writeArtifacts(t, dirB, identityScaler(), constantLinear(7))
	writeArtifacts(t, dirC, identityScaler(), constantLinear(14))

	a, err := Load(dirA)
	require.NoError(t, err)
	b, err := Load(dirB)
	require.NoError(t, err)
	c, err := Load(dirC)
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID())
	assert.Equal(t, a.ID(), b.ID(), "identical artifacts share an id")
	assert.NotEqual(t, a.ID(), c.ID(), "a retrained regressor gets a new id")

	scaler, _ := identityScaler().Build()
	regressor, _ := constantLinear(7).Build()
	m1, err := NewModelContext(scaler, regressor, nil)
	require.NoError(t, err)
	m2, err := NewModelContext(scaler, regressor, nil)
	require.NoError(t, err)
	assert.NotEqual(t, m1.ID(), m2.ID())

	assert.Empty(t, Unavailable(nil).ID())
	var nilCtx *ModelContext
	assert.Empty(t, nilCtx.ID())
}
