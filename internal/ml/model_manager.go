package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// VersionsFile lists the known artifact directories under a model root.
const VersionsFile = "model_versions.json"

// ModelVersion represents a versioned set of model artifacts
type ModelVersion struct {
	Version   string       `json:"version"`
	Path      string       `json:"path"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics contains offline validation metrics for a regressor
type ModelMetrics struct {
	RMSE            float64 `json:"rmse"`
	MAE             float64 `json:"mae"`
	R2              float64 `json:"r2"`
	TrainingSamples int     `json:"training_samples"`
}

// ModelManager handles model versioning and rollback
type ModelManager struct {
	mu           sync.RWMutex
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	currentModel *ModelVersion
	now          func() time.Time
}

// NewModelManager creates a new model manager
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if modelsDir == "" {
		return nil, fmt.Errorf("models directory is required")
	}

	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, VersionsFile),
		versions:     make([]ModelVersion, 0),
		now:          time.Now,
	}

	// Load existing versions if available
	if err := mm.loadVersions(); err != nil {
		log.Warn().Err(err).Str("file", mm.versionsFile).Msg("Failed to load model versions, starting fresh")
	}

	return mm, nil
}

// ResolveArtifactDir returns the directory holding the active version's
// artifacts, or the model root itself when no version is active.
func ResolveArtifactDir(root string) string {
	mm, err := NewModelManager(root)
	if err != nil {
		return root
	}
	return mm.ArtifactDir()
}

// ArtifactDir is the active version's path, relative paths resolved against
// the model root.
func (mm *ModelManager) ArtifactDir() string {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if mm.currentModel == nil {
		return mm.modelsDir
	}
	return mm.ArtifactDirFor(*mm.currentModel)
}

// ArtifactDirFor resolves v's path against the model root.
func (mm *ModelManager) ArtifactDirFor(v ModelVersion) string {
	if v.Path == "" {
		return mm.modelsDir
	}
	if filepath.IsAbs(v.Path) {
		return v.Path
	}
	return filepath.Join(mm.modelsDir, v.Path)
}

// AddVersion records a new, inactive artifact directory
func (mm *ModelManager) AddVersion(modelPath string, metrics ModelMetrics) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	created := mm.now()
	version := ModelVersion{
		Version:   created.Format("20060102-150405.000"),
		Path:      modelPath,
		CreatedAt: created,
		Metrics:   metrics,
	}

	mm.versions = append(mm.versions, version)

	// Newest first
	sort.SliceStable(mm.versions, func(i, j int) bool {
		return mm.versions[i].CreatedAt.After(mm.versions[j].CreatedAt)
	})
	mm.relinkCurrent()

	return version, mm.saveVersions()
}

// ActivateVersion activates a specific model version
func (mm *ModelManager) ActivateVersion(version string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activateLocked(version)
}

func (mm *ModelManager) activateLocked(version string) error {
	found := false
	for i := range mm.versions {
		if mm.versions[i].Version == version {
			mm.versions[i].IsActive = true
			found = true
		} else {
			mm.versions[i].IsActive = false
		}
	}

	if !found {
		return fmt.Errorf("version %s not found", version)
	}
	mm.relinkCurrent()

	return mm.saveVersions()
}

// Rollback activates the version created before the active one
func (mm *ModelManager) Rollback() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if len(mm.versions) < 2 {
		return fmt.Errorf("no previous version available for rollback")
	}

	currentIdx := -1
	for i, v := range mm.versions {
		if v.IsActive {
			currentIdx = i
			break
		}
	}

	if currentIdx == -1 {
		return fmt.Errorf("no active version found")
	}

	if currentIdx+1 < len(mm.versions) {
		return mm.activateLocked(mm.versions[currentIdx+1].Version)
	}

	return fmt.Errorf("no previous version available")
}

// GetCurrentVersion returns a copy of the active version, or nil
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if mm.currentModel == nil {
		return nil
	}
	v := *mm.currentModel
	return &v
}

// ListVersions returns all model versions, newest first
func (mm *ModelManager) ListVersions() []ModelVersion {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

// relinkCurrent repoints currentModel after the slice is reordered.
func (mm *ModelManager) relinkCurrent() {
	mm.currentModel = nil
	for i := range mm.versions {
		if mm.versions[i].IsActive {
			mm.currentModel = &mm.versions[i]
			return
		}
	}
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, &mm.versions); err != nil {
		return err
	}
	mm.relinkCurrent()

	return nil
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(mm.versionsFile, data, 0o600)
}
