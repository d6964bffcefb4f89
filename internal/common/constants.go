package common

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvHTTPPort          = "HTTP_PORT"
	EnvMetricsPort       = "METRICS_PORT"
	EnvModelDir          = "MODEL_DIR"
	EnvConfidenceSamples = "CONFIDENCE_SAMPLES"
	EnvStrictGender      = "STRICT_GENDER"
	EnvStorageBackend    = "STORAGE_BACKEND"
	EnvDataPath          = "DATA_PATH"
	EnvDatabaseURL       = "DATABASE_URL"
	EnvCacheBackend      = "CACHE_BACKEND"
	EnvCacheSize         = "CACHE_SIZE"
	EnvCacheTTL          = "CACHE_TTL"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvRedisPassword     = "REDIS_PASSWORD"
	EnvRedisDB           = "REDIS_DB"
	EnvCORSOrigins       = "CORS_ORIGINS"
	EnvRateLimitRPS      = "RATE_LIMIT_RPS"
	EnvRateLimitBurst    = "RATE_LIMIT_BURST"
	EnvBcryptCost        = "BCRYPT_COST"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
	EnvRequestTimeout    = "REQUEST_TIMEOUT"
)

// Storage and cache backends
const (
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Configuration defaults
const (
	DefaultHTTPPort          = 5000
	DefaultMetricsPort       = 9090
	DefaultModelDir          = "models"
	DefaultConfidenceSamples = 5
	DefaultStorageBackend    = StorageBolt
	DefaultDataPath          = "data"
	DefaultCacheBackend      = CacheMemory
	DefaultCacheSize         = 1000
	DefaultRedisAddr         = "localhost:6379"
	DefaultCORSOrigin        = "http://localhost:3000"
	DefaultRateLimitRPS      = 50.0
	DefaultRateLimitBurst    = 100
	DefaultBcryptCost        = 10
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
)

// Validation constants
const (
	MinPort              = 1024
	MaxPort              = 65535
	MaxConfidenceSamples = 100
	MaxCacheSize         = 1_000_000
	MinBcryptCost        = 4
	MaxBcryptCost        = 31
)
