package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hemocheck/internal/common"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	HTTPPort          int
	MetricsPort       int
	ModelDir          string
	ConfidenceSamples int
	StrictGender      bool
	StorageBackend    string
	DataPath          string
	DatabaseURL       string
	CacheBackend      string
	CacheSize         int
	CacheTTL          time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CORSOrigins       []string
	RateLimitRPS      float64
	RateLimitBurst    int
	BcryptCost        int
	LogLevel          string
	LogFormat         string
	RequestTimeout    time.Duration
}

type ConfigFile struct {
	Server struct {
		HTTPPort       int      `yaml:"httpPort"`
		MetricsPort    int      `yaml:"metricsPort"`
		CORSOrigins    []string `yaml:"corsOrigins"`
		RateLimitRPS   float64  `yaml:"rateLimitRPS"`
		RateLimitBurst int      `yaml:"rateLimitBurst"`
		RequestTimeout string   `yaml:"requestTimeout"`
	} `yaml:"server"`

	ML struct {
		ModelDir          string `yaml:"modelDir"`
		ConfidenceSamples int    `yaml:"confidenceSamples"`
		StrictGender      bool   `yaml:"strictGender"`
	} `yaml:"ml"`

	Storage struct {
		Backend     string `yaml:"backend"`
		DataPath    string `yaml:"dataPath"`
		DatabaseURL string `yaml:"databaseURL"`
		BcryptCost  int    `yaml:"bcryptCost"`
	} `yaml:"storage"`

	Cache struct {
		Backend       string `yaml:"backend"`
		Size          int    `yaml:"size"`
		TTL           string `yaml:"ttl"`
		RedisAddr     string `yaml:"redisAddr"`
		RedisPassword string `yaml:"redisPassword"`
		RedisDB       int    `yaml:"redisDB"`
	} `yaml:"cache"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cacheTTL, err := time.ParseDuration(config.Cache.TTL)
	if err != nil {
		cacheTTL = 5 * time.Minute
	}

	requestTimeout, err := time.ParseDuration(config.Server.RequestTimeout)
	if err != nil {
		requestTimeout = 10 * time.Second
	}

	// Environment variables override file values
	settings := Settings{
		HTTPPort:          getIntFromEnvOrConfig(common.EnvHTTPPort, config.Server.HTTPPort, common.DefaultHTTPPort),
		MetricsPort:       getIntFromEnvOrConfig(common.EnvMetricsPort, config.Server.MetricsPort, common.DefaultMetricsPort),
		ModelDir:          getEnvOrDefault(common.EnvModelDir, orDefault(config.ML.ModelDir, common.DefaultModelDir)),
		ConfidenceSamples: getIntFromEnvOrConfig(common.EnvConfidenceSamples, config.ML.ConfidenceSamples, common.DefaultConfidenceSamples),
		StrictGender:      getBoolFromEnvOrConfig(common.EnvStrictGender, config.ML.StrictGender),
		StorageBackend:    getEnvOrDefault(common.EnvStorageBackend, orDefault(config.Storage.Backend, common.DefaultStorageBackend)),
		DataPath:          getEnvOrDefault(common.EnvDataPath, orDefault(config.Storage.DataPath, common.DefaultDataPath)),
		DatabaseURL:       getEnvOrDefault(common.EnvDatabaseURL, config.Storage.DatabaseURL),
		CacheBackend:      getEnvOrDefault(common.EnvCacheBackend, orDefault(config.Cache.Backend, common.DefaultCacheBackend)),
		CacheSize:         getIntFromEnvOrConfig(common.EnvCacheSize, config.Cache.Size, common.DefaultCacheSize),
		CacheTTL:          getDurationOrDefault(common.EnvCacheTTL, cacheTTL),
		RedisAddr:         getEnvOrDefault(common.EnvRedisAddr, orDefault(config.Cache.RedisAddr, common.DefaultRedisAddr)),
		RedisPassword:     getEnvOrDefault(common.EnvRedisPassword, config.Cache.RedisPassword),
		RedisDB:           getIntFromEnvOrConfig(common.EnvRedisDB, config.Cache.RedisDB, 0),
		CORSOrigins:       getListFromEnvOrConfig(common.EnvCORSOrigins, config.Server.CORSOrigins, []string{common.DefaultCORSOrigin}),
		RateLimitRPS:      getFloatFromEnvOrConfig(common.EnvRateLimitRPS, config.Server.RateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:    getIntFromEnvOrConfig(common.EnvRateLimitBurst, config.Server.RateLimitBurst, common.DefaultRateLimitBurst),
		BcryptCost:        getIntFromEnvOrConfig(common.EnvBcryptCost, config.Storage.BcryptCost, common.DefaultBcryptCost),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, orDefault(config.Logging.Level, common.DefaultLogLevel)),
		LogFormat:         getEnvOrDefault(common.EnvLogFormat, orDefault(config.Logging.Format, common.DefaultLogFormat)),
		RequestTimeout:    getDurationOrDefault(common.EnvRequestTimeout, requestTimeout),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		HTTPPort:          getIntOrDefault(common.EnvHTTPPort, common.DefaultHTTPPort),
		MetricsPort:       getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		ModelDir:          getEnvOrDefault(common.EnvModelDir, common.DefaultModelDir),
		ConfidenceSamples: getIntOrDefault(common.EnvConfidenceSamples, common.DefaultConfidenceSamples),
		StrictGender:      getBoolOrDefault(common.EnvStrictGender, false),
		StorageBackend:    getEnvOrDefault(common.EnvStorageBackend, common.DefaultStorageBackend),
		DataPath:          getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		DatabaseURL:       os.Getenv(common.EnvDatabaseURL),
		CacheBackend:      getEnvOrDefault(common.EnvCacheBackend, common.DefaultCacheBackend),
		CacheSize:         getIntOrDefault(common.EnvCacheSize, common.DefaultCacheSize),
		CacheTTL:          getDurationOrDefault(common.EnvCacheTTL, 5*time.Minute),
		RedisAddr:         getEnvOrDefault(common.EnvRedisAddr, common.DefaultRedisAddr),
		RedisPassword:     os.Getenv(common.EnvRedisPassword),
		RedisDB:           getIntOrDefault(common.EnvRedisDB, 0),
		CORSOrigins:       splitOrDefault(os.Getenv(common.EnvCORSOrigins), []string{common.DefaultCORSOrigin}),
		RateLimitRPS:      getFloatOrDefault(common.EnvRateLimitRPS, common.DefaultRateLimitRPS),
		RateLimitBurst:    getIntOrDefault(common.EnvRateLimitBurst, common.DefaultRateLimitBurst),
		BcryptCost:        getIntOrDefault(common.EnvBcryptCost, common.DefaultBcryptCost),
		LogLevel:          getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:         getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		RequestTimeout:    getDurationOrDefault(common.EnvRequestTimeout, 10*time.Second),
	}

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getListFromEnvOrConfig(key string, configValue, def []string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, def)
	}
	if len(configValue) > 0 {
		return configValue
	}
	return def
}

func getIntFromEnvOrConfig(key string, configValue, def int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getFloatFromEnvOrConfig(key string, configValue, def float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs range and consistency checks on configuration values
func validateSettings(settings *Settings) error {
	if settings.HTTPPort < common.MinPort || settings.HTTPPort > common.MaxPort {
		return fmt.Errorf("HTTP port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.HTTPPort)
	}
	if settings.MetricsPort < common.MinPort || settings.MetricsPort > common.MaxPort {
		return fmt.Errorf("metrics port must be between %d and %d, got %d", common.MinPort, common.MaxPort, settings.MetricsPort)
	}
	if settings.MetricsPort == settings.HTTPPort {
		return fmt.Errorf("metrics port must differ from HTTP port (%d)", settings.HTTPPort)
	}

	if settings.ModelDir == "" {
		return fmt.Errorf("model directory cannot be empty")
	}
	if settings.ConfidenceSamples < 1 || settings.ConfidenceSamples > common.MaxConfidenceSamples {
		return fmt.Errorf("confidence samples must be between 1 and %d, got %d", common.MaxConfidenceSamples, settings.ConfidenceSamples)
	}

	switch settings.StorageBackend {
	case common.StorageBolt:
		if settings.DataPath == "" {
			return fmt.Errorf("data path is required for the %s storage backend", common.StorageBolt)
		}
	case common.StoragePostgres:
		if settings.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for the %s storage backend", common.StoragePostgres)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", settings.StorageBackend)
	}

	switch settings.CacheBackend {
	case common.CacheNone:
	case common.CacheMemory:
		if settings.CacheSize <= 0 || settings.CacheSize > common.MaxCacheSize {
			return fmt.Errorf("cache size must be between 1 and %d, got %d", common.MaxCacheSize, settings.CacheSize)
		}
	case common.CacheRedis:
		if settings.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the %s cache backend", common.CacheRedis)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", settings.CacheBackend)
	}
	if settings.CacheBackend != common.CacheNone && (settings.CacheTTL < time.Second || settings.CacheTTL > 24*time.Hour) {
		return fmt.Errorf("cache TTL must be between 1s and 24h, got %v", settings.CacheTTL)
	}

	if settings.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit must be positive, got %f", settings.RateLimitRPS)
	}
	if settings.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", settings.RateLimitBurst)
	}
	if settings.BcryptCost < common.MinBcryptCost || settings.BcryptCost > common.MaxBcryptCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d", common.MinBcryptCost, common.MaxBcryptCost, settings.BcryptCost)
	}
	if settings.RequestTimeout < time.Second || settings.RequestTimeout > time.Minute {
		return fmt.Errorf("request timeout must be between 1s and 1m, got %v", settings.RequestTimeout)
	}

	return nil
}
