package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"hemocheck/internal/ml"
	"hemocheck/internal/pipeline"
)

func main() {
	fmt.Println("🧪 Testing model artifacts")
	fmt.Println("==========================")

	// Get model root from args or use default
	root := "models"
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		log.Fatalf("❌ Failed to get absolute path: %v", err)
	}
	dir := ml.ResolveArtifactDir(absRoot)
	fmt.Printf("📁 Artifact directory: %s\n", dir)

	// Test 1: Load artifacts
	fmt.Println("\n🔧 Test 1: Loading scaler and regressor...")
	models, err := ml.Load(dir)
	if err != nil {
		log.Fatalf("❌ Failed to load model: %v", err)
	}
	defer models.Close()
	md := models.Metadata()
	fmt.Printf("✅ Loaded %s model, version %s, trained %s\n", md.Algorithm, md.Version, md.TrainedAt.Format(time.RFC3339))

	p := pipeline.New(models)
	ctx := context.Background()

	// Test 2: Reference panels
	fmt.Println("\n🔧 Test 2: Predicting reference panels...")
	testCases := []struct {
		name     string
		panel    map[string]any
		expected string
	}{
		{"Healthy adult male", panel(35, "male", 5.2, 90, 30, 34), "Normal"},
		{"Healthy adult female", panel(29, "female", 4.5, 88, 29, 33), "Normal"},
		{"Microcytic female", panel(41, "female", 4.0, 72, 23, 31), "Mild or Moderate Anemia"},
		{"Severe deficiency", panel(67, "male", 2.9, 70, 21, 30), "Moderate or Severe Anemia"},
	}

	for i, tc := range testCases {
		res, err := p.Run(ctx, tc.panel)
		if err != nil {
			fmt.Printf("  2.%d %-22s ❌ %v\n", i+1, tc.name, err)
			continue
		}
		fmt.Printf("  2.%d %-22s Hb %.2f g/dL  %-16s conf %.3f  (expected %s)\n",
			i+1, tc.name, res.Hemoglobin, res.Class, res.Confidence, tc.expected)
	}

	// Test 3: Edge cases must fail cleanly
	fmt.Println("\n🔧 Test 3: Testing edge cases...")
	missing := panel(40, "female", 4.5, 88, 29, 33)
	delete(missing, "mch")
	wrongType := panel(40, "female", 4.5, 88, 29, 33)
	wrongType["wbc"] = []int{1}

	edgeCases := []struct {
		name  string
		panel map[string]any
	}{
		{"Empty panel", map[string]any{}},
		{"Missing mch", missing},
		{"Non-numeric wbc", wrongType},
		{"Unknown gender", panel(40, "unspecified", 4.5, 88, 29, 33)},
	}
	for i, tc := range edgeCases {
		res, err := p.Run(ctx, tc.panel)
		switch {
		case err == nil:
			fmt.Printf("  3.%d %-18s accepted: %s\n", i+1, tc.name, res.Class)
		case pipeline.IsValidation(err):
			fmt.Printf("  3.%d %-18s ✅ rejected: %v\n", i+1, tc.name, err)
		default:
			var ie *pipeline.InferenceError
			if errors.As(err, &ie) {
				fmt.Printf("  3.%d %-18s ❌ inference failed at %s: %v\n", i+1, tc.name, ie.Stage, err)
			} else {
				fmt.Printf("  3.%d %-18s ❌ %v\n", i+1, tc.name, err)
			}
		}
	}

	// Test 4: Throughput
	fmt.Println("\n🔧 Test 4: Stress testing with repeated predictions...")
	const n = 1000
	start := time.Now()
	for i := 0; i < n; i++ {
		if _, err := p.Run(ctx, panel(float64(20+i%60), "female", 3.5+float64(i%25)/10, 85, 28, 33)); err != nil {
			log.Fatalf("❌ Prediction %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("  📊 %d predictions in %v (%.1f µs each)\n", n, elapsed, float64(elapsed.Microseconds())/n)

	health := p.Health()
	fmt.Printf("  Error rate %.3f, average latency %.3f ms\n", health.ErrorRate, health.AverageLatency)

	fmt.Println("\n🎉 All checks completed!")
}

func panel(age float64, gender string, rbc, mcv, mch, mchc float64) map[string]any {
	return map[string]any{
		"age":            age,
		"gender":         gender,
		"platelet_count": 250000.0,
		"wbc":            7.0,
		"rbc":            rbc,
		"mcv":            mcv,
		"mch":            mch,
		"mchc":           mchc,
	}
}
