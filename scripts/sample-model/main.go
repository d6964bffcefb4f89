package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"hemocheck/internal/features"
	"hemocheck/internal/ml"
)

func main() {
	var (
		modelDir = flag.String("models", "models", "Model root directory")
		version  = flag.String("dir", "", "Artifact subdirectory (default: sample-<timestamp>)")
		rows     = flag.Int("rows", 5000, "Number of synthetic panels to fit on")
		seed     = flag.Int64("seed", 1, "Random seed")
		activate = flag.Bool("activate", true, "Register and activate the new version")
	)
	flag.Parse()

	if *version == "" {
		*version = "sample-" + time.Now().UTC().Format("20060102-150405")
	}
	outDir := filepath.Join(*modelDir, *version)

	fmt.Printf("Fitting sample model on %d synthetic panels...\n", *rows)
	fmt.Printf("  Output: %s\n", outDir)

	rng := rand.New(rand.NewSource(*seed))
	train := generatePanels(rng, *rows)
	valid := generatePanels(rng, *rows/5+1)

	mean, scale := fitScaler(train.x)
	scaler, err := ml.NewStandardScaler(mean, scale)
	if err != nil {
		log.Fatalf("Failed to build scaler: %v", err)
	}

	scaled := make([][]float64, len(train.x))
	for i, v := range train.x {
		if scaled[i], err = scaler.Transform(v); err != nil {
			log.Fatalf("Failed to scale training row %d: %v", i, err)
		}
	}
	intercept, coef, err := fitOLS(scaled, train.y)
	if err != nil {
		log.Fatalf("Failed to fit regressor: %v", err)
	}
	reg, err := ml.NewLinearRegressor(intercept, coef)
	if err != nil {
		log.Fatalf("Failed to build regressor: %v", err)
	}

	rmse, r2 := evaluate(scaler, reg, valid)
	fmt.Printf("  Validation RMSE: %.4f g/dL, R2: %.4f\n", rmse, r2)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	names := features.Order[:]
	writeJSON(filepath.Join(outDir, ml.ScalerFile), ml.ScalerArtifact{
		Kind: ml.KindStandard, FeatureNames: names, Mean: mean, Scale: scale,
	})
	writeJSON(filepath.Join(outDir, ml.RegressorFile), ml.RegressorArtifact{
		Kind: ml.KindLinear, FeatureNames: names, Intercept: intercept, Coefficients: coef,
	})
	writeJSON(filepath.Join(outDir, ml.MetadataFile), ml.ModelMetadata{
		Version:        *version,
		Algorithm:      ml.KindLinear,
		TrainedAt:      time.Now().UTC(),
		Features:       names,
		TrainingRows:   *rows,
		ValidationRMSE: rmse,
		ValidationR2:   r2,
	})

	// Round-trip through the loader the service uses.
	if _, err := ml.Load(outDir); err != nil {
		log.Fatalf("Written artifacts do not load: %v", err)
	}

	if *activate {
		mm, err := ml.NewModelManager(*modelDir)
		if err != nil {
			log.Fatalf("Failed to open model manager: %v", err)
		}
		v, err := mm.AddVersion(*version, ml.ModelMetrics{RMSE: rmse, R2: r2, TrainingSamples: *rows})
		if err != nil {
			log.Fatalf("Failed to register version: %v", err)
		}
		if err := mm.ActivateVersion(v.Version); err != nil {
			log.Fatalf("Failed to activate version: %v", err)
		}
		fmt.Printf("  Activated version %s\n", v.Version)
	}

	fmt.Printf("✓ Sample model written to %s\n", outDir)
}

type dataset struct {
	x []features.Vector
	y []float64
}

// generatePanels draws plausible panels. Hemoglobin follows from RBC and MCH
// (MCH = Hb / RBC), plus a small gender offset and noise.
func generatePanels(rng *rand.Rand, n int) dataset {
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	ds := dataset{x: make([]features.Vector, n), y: make([]float64, n)}
	for i := 0; i < n; i++ {
		male := 0.0
		if rng.Intn(2) == 0 {
			male = 1
		}
		v := features.Vector{
			uniform(18, 85),
			male,
			uniform(150_000, 450_000),
			uniform(4, 11),
			uniform(3.2, 6.1),
			uniform(70, 100),
			uniform(20, 34),
			uniform(30, 36),
		}
		hb := v[4]*v[6]/10 + 0.4*male - 0.004*(v[0]-50) + rng.NormFloat64()*0.35
		ds.x[i] = v
		ds.y[i] = hb
	}
	return ds
}

func fitScaler(xs []features.Vector) (mean, scale []float64) {
	mean = make([]float64, features.NumFeatures)
	scale = make([]float64, features.NumFeatures)
	n := float64(len(xs))

	for _, v := range xs {
		for j, x := range v {
			mean[j] += x / n
		}
	}
	for _, v := range xs {
		for j, x := range v {
			d := x - mean[j]
			scale[j] += d * d / n
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j])
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	return mean, scale
}

// fitOLS solves the normal equations with Gaussian elimination.
func fitOLS(x [][]float64, y []float64) (float64, []float64, error) {
	p := features.NumFeatures + 1
	a := make([][]float64, p)
	for i := range a {
		a[i] = make([]float64, p+1)
	}

	row := make([]float64, p)
	for i, xi := range x {
		row[0] = 1
		copy(row[1:], xi)
		for r := 0; r < p; r++ {
			for c := 0; c < p; c++ {
				a[r][c] += row[r] * row[c]
			}
			a[r][p] += row[r] * y[i]
		}
	}

	for col := 0; col < p; col++ {
		pivot := col
		for r := col + 1; r < p; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return 0, nil, fmt.Errorf("singular design matrix at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := 0; r < p; r++ {
			if r == col {
				continue
			}
			f := a[r][col] / a[col][col]
			for c := col; c <= p; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}

	beta := make([]float64, p)
	for i := range beta {
		beta[i] = a[i][p] / a[i][i]
	}
	return beta[0], beta[1:], nil
}

func evaluate(scaler ml.Scaler, reg ml.Regressor, ds dataset) (rmse, r2 float64) {
	var mean float64
	for _, y := range ds.y {
		mean += y / float64(len(ds.y))
	}

	var sse, sst float64
	for i, v := range ds.x {
		x, err := scaler.Transform(v)
		if err != nil {
			log.Fatalf("Failed to scale validation row %d: %v", i, err)
		}
		pred, err := reg.Predict(x)
		if err != nil {
			log.Fatalf("Failed to predict validation row %d: %v", i, err)
		}
		sse += (pred - ds.y[i]) * (pred - ds.y[i])
		sst += (ds.y[i] - mean) * (ds.y[i] - mean)
	}
	rmse = math.Sqrt(sse / float64(len(ds.y)))
	if sst > 0 {
		r2 = 1 - sse/sst
	}
	return rmse, r2
}

func writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode %s: %v", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
}
