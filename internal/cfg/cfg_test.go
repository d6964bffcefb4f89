package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 5000 {
					t.Errorf("expected default HTTPPort 5000, got %d", settings.HTTPPort)
				}
				if settings.ModelDir != "models" {
					t.Errorf("expected default ModelDir 'models', got %s", settings.ModelDir)
				}
				if settings.StorageBackend != "bolt" {
					t.Errorf("expected default storage backend bolt, got %s", settings.StorageBackend)
				}
				if settings.ConfidenceSamples != 5 {
					t.Errorf("expected default ConfidenceSamples 5, got %d", settings.ConfidenceSamples)
				}
				if settings.StrictGender {
					t.Error("expected StrictGender to default to false")
				}
				if len(settings.CORSOrigins) != 1 || settings.CORSOrigins[0] != "http://localhost:3000" {
					t.Errorf("expected default CORS origin, got %v", settings.CORSOrigins)
				}
				if settings.CacheTTL != 5*time.Minute {
					t.Errorf("expected default CacheTTL 5m, got %v", settings.CacheTTL)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"HTTP_PORT":          "8081",
				"METRICS_PORT":       "9191",
				"MODEL_DIR":          "/opt/models",
				"CONFIDENCE_SAMPLES": "10",
				"STRICT_GENDER":      "true",
				"CORS_ORIGINS":       "http://a.example, http://b.example",
				"CACHE_BACKEND":      "none",
				"RATE_LIMIT_RPS":     "2.5",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 8081 {
					t.Errorf("expected HTTPPort 8081, got %d", settings.HTTPPort)
				}
				if settings.MetricsPort != 9191 {
					t.Errorf("expected MetricsPort 9191, got %d", settings.MetricsPort)
				}
				if settings.ModelDir != "/opt/models" {
					t.Errorf("expected ModelDir /opt/models, got %s", settings.ModelDir)
				}
				if settings.ConfidenceSamples != 10 {
					t.Errorf("expected ConfidenceSamples 10, got %d", settings.ConfidenceSamples)
				}
				if !settings.StrictGender {
					t.Error("expected StrictGender to be true")
				}
				expected := []string{"http://a.example", "http://b.example"}
				if len(settings.CORSOrigins) != len(expected) {
					t.Fatalf("expected %d origins, got %v", len(expected), settings.CORSOrigins)
				}
				for i, o := range expected {
					if settings.CORSOrigins[i] != o {
						t.Errorf("expected origin %s at %d, got %s", o, i, settings.CORSOrigins[i])
					}
				}
				if settings.RateLimitRPS != 2.5 {
					t.Errorf("expected RateLimitRPS 2.5, got %f", settings.RateLimitRPS)
				}
			},
		},
		{
			name: "postgres without database URL",
			envVars: map[string]string{
				"STORAGE_BACKEND": "postgres",
			},
			wantErr: true,
		},
		{
			name: "postgres with database URL",
			envVars: map[string]string{
				"STORAGE_BACKEND": "postgres",
				"DATABASE_URL":    "postgres://localhost/anemia?sslmode=disable",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.DatabaseURL != "postgres://localhost/anemia?sslmode=disable" {
					t.Errorf("unexpected DatabaseURL %s", settings.DatabaseURL)
				}
			},
		},
		{
			name: "unknown cache backend",
			envVars: map[string]string{
				"CACHE_BACKEND": "memcached",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name         string
		yamlContent  string
		envOverrides map[string]string
		wantErr      bool
		validate     func(t *testing.T, settings Settings)
	}{
		{
			name: "valid YAML config",
			yamlContent: `
server:
  httpPort: 7000
  metricsPort: 7001
  corsOrigins: ["https://app.example"]
  rateLimitRPS: 20
  rateLimitBurst: 40
  requestTimeout: "15s"
ml:
  modelDir: "/srv/models"
  confidenceSamples: 3
  strictGender: true
storage:
  backend: "bolt"
  dataPath: "/srv/data"
  bcryptCost: 12
cache:
  backend: "memory"
  size: 50
  ttl: "90s"
logging:
  level: "debug"
  format: "console"
`,
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 7000 {
					t.Errorf("expected HTTPPort 7000, got %d", settings.HTTPPort)
				}
				if settings.ModelDir != "/srv/models" {
					t.Errorf("expected ModelDir /srv/models, got %s", settings.ModelDir)
				}
				if settings.ConfidenceSamples != 3 {
					t.Errorf("expected ConfidenceSamples 3, got %d", settings.ConfidenceSamples)
				}
				if !settings.StrictGender {
					t.Error("expected StrictGender to be true")
				}
				if settings.CacheTTL != 90*time.Second {
					t.Errorf("expected CacheTTL 90s, got %v", settings.CacheTTL)
				}
				if settings.RequestTimeout != 15*time.Second {
					t.Errorf("expected RequestTimeout 15s, got %v", settings.RequestTimeout)
				}
				if settings.BcryptCost != 12 {
					t.Errorf("expected BcryptCost 12, got %d", settings.BcryptCost)
				}
				if settings.LogFormat != "console" {
					t.Errorf("expected LogFormat console, got %s", settings.LogFormat)
				}
			},
		},
		{
			name: "YAML with env overrides",
			yamlContent: `
server:
  httpPort: 7000
ml:
  modelDir: "/srv/models"
`,
			envOverrides: map[string]string{
				"HTTP_PORT": "7100",
				"MODEL_DIR": "/override/models",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.HTTPPort != 7100 {
					t.Errorf("expected env override HTTPPort 7100, got %d", settings.HTTPPort)
				}
				if settings.ModelDir != "/override/models" {
					t.Errorf("expected env override ModelDir, got %s", settings.ModelDir)
				}
				if settings.MetricsPort != 9090 {
					t.Errorf("expected default MetricsPort 9090, got %d", settings.MetricsPort)
				}
			},
		},
		{
			name:        "invalid YAML",
			yamlContent: "server: [unclosed",
			wantErr:     true,
		},
		{
			name: "invalid values",
			yamlContent: `
ml:
  confidenceSamples: 1000
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)

			for key, value := range tt.envOverrides {
				t.Setenv(key, value)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("failed to write test config file: %v", err)
			}

			settings, err := loadFromYAML(configPath)

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("load from env when no config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("HTTP_PORT", "6000")

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.HTTPPort != 6000 {
			t.Errorf("expected HTTPPort 6000, got %d", settings.HTTPPort)
		}
	})

	t.Run("load from YAML when config file specified", func(t *testing.T) {
		clearTestEnv(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(configPath, []byte("server:\n  httpPort: 6100\n"), 0o644); err != nil {
			t.Fatalf("failed to write test config file: %v", err)
		}
		t.Setenv("CONFIG_FILE", configPath)

		settings, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if settings.HTTPPort != 6100 {
			t.Errorf("expected HTTPPort 6100, got %d", settings.HTTPPort)
		}
	})

	t.Run("missing config file", func(t *testing.T) {
		clearTestEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})
}

func TestSettingsAddresses(t *testing.T) {
	s := Settings{HTTPPort: 5000, MetricsPort: 9090, DataPath: "/var/lib/hemocheck"}

	if s.HTTPAddr() != ":5000" {
		t.Errorf("unexpected HTTPAddr %s", s.HTTPAddr())
	}
	if s.MetricsAddr() != ":9090" {
		t.Errorf("unexpected MetricsAddr %s", s.MetricsAddr())
	}
	if s.BoltPath() != filepath.Join("/var/lib/hemocheck", "hemocheck.db") {
		t.Errorf("unexpected BoltPath %s", s.BoltPath())
	}
}

// clearTestEnv clears potentially conflicting environment variables
func clearTestEnv(t *testing.T) {
	envVars := []string{
		"CONFIG_FILE", "HTTP_PORT", "METRICS_PORT", "MODEL_DIR", "CONFIDENCE_SAMPLES",
		"STRICT_GENDER", "STORAGE_BACKEND", "DATA_PATH", "DATABASE_URL", "CACHE_BACKEND",
		"CACHE_SIZE", "CACHE_TTL", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CORS_ORIGINS",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BCRYPT_COST", "LOG_LEVEL", "LOG_FORMAT",
		"REQUEST_TIMEOUT",
	}

	for _, env := range envVars {
		t.Setenv(env, "")
	}
}
