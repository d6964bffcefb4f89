package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"hemocheck/internal/features"
)

// ModelMetadata contains information about the loaded model
type ModelMetadata struct {
	Version        string    `json:"version"`
	Algorithm      string    `json:"algorithm"`
	TrainedAt      time.Time `json:"trained_at"`
	Features       []string  `json:"features"`
	TrainingRows   int       `json:"training_rows"`
	ValidationRMSE float64   `json:"validation_rmse"`
	ValidationR2   float64   `json:"validation_r2"`
}

func defaultMetadata(algorithm string) *ModelMetadata {
	return &ModelMetadata{
		Version:   "unknown",
		Algorithm: algorithm,
		Features:  features.Order[:],
	}
}

func loadModelMetadata(dir string) (*ModelMetadata, error) {
	primary := filepath.Join(dir, MetadataFile)

	if md, err := decodeMetadata(primary); err == nil {
		return md, nil
	}

	// Fallback: pick the newest metadata file by timestamp suffix
	pattern := filepath.Join(dir, "model_metadata_*.json")
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("no metadata files found in %s", dir)
	}
	sort.Strings(matches)
	return decodeMetadata(matches[len(matches)-1])
}

func decodeMetadata(path string) (*ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var md ModelMetadata
	if err := json.NewDecoder(file).Decode(&md); err != nil {
		return nil, err
	}
	if md.Version == "" {
		md.Version = "unknown"
	}
	if len(md.Features) == 0 {
		md.Features = features.Order[:]
	}
	return &md, nil
}
