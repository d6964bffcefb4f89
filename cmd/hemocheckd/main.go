package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hemocheck/internal/cache"
	"hemocheck/internal/cfg"
	"hemocheck/internal/common"
	"hemocheck/internal/database"
	"hemocheck/internal/metrics"
	"hemocheck/internal/ml"
	"hemocheck/internal/pipeline"
	"hemocheck/internal/records"
	"hemocheck/internal/server"
	"hemocheck/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	models := loadModels(c)
	defer models.Close()

	store, err := initializeStorage(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Str("backend", c.StorageBackend).Msg("storage initialization failed")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	var wg sync.WaitGroup

	opts := []pipeline.Option{
		pipeline.WithStrictGender(c.StrictGender),
		pipeline.WithConfidenceSamples(c.ConfidenceSamples),
		pipeline.WithMetrics(mw),
	}
	if predCache, closeCache := initializeCache(ctx, &wg, c); predCache != nil {
		defer closeCache()
		opts = append(opts, pipeline.WithCache(predCache, c.CacheTTL))
	}
	p := pipeline.New(models, opts...)

	srv := server.New(server.Config{
		Addr:           c.HTTPAddr(),
		CORSOrigins:    c.CORSOrigins,
		RateLimitRPS:   c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
		RequestTimeout: c.RequestTimeout,
	}, p, store, mw)

	startMetricsServer(ctx, c, srv)
	startModelGauges(ctx, &wg, models, m)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, srv, &wg)
}

// setupLogging applies the configured level and output format.
func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// loadModels loads the active artifact set. A failed load leaves the service
// running with every prediction answered 503.
func loadModels(c cfg.Settings) *ml.ModelContext {
	dir := ml.ResolveArtifactDir(c.ModelDir)
	models, err := ml.Load(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("model unavailable, predictions disabled")
		return ml.Unavailable(err)
	}

	md := models.Metadata()
	log.Info().
		Str("dir", dir).
		Str("version", md.Version).
		Str("algorithm", md.Algorithm).
		Msg("model loaded")
	return models
}

// initializeStorage opens the configured records backend.
func initializeStorage(ctx context.Context, c cfg.Settings) (records.Store, error) {
	hasher := records.Hasher{Cost: c.BcryptCost}

	switch c.StorageBackend {
	case common.StoragePostgres:
		return database.New(ctx, c.DatabaseURL, hasher, database.ConnectOptions{})
	default:
		return storage.New(c.BoltPath(), hasher)
	}
}

// initializeCache returns nil when caching is disabled or its backend is down.
func initializeCache(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings) (cache.Store, func()) {
	switch c.CacheBackend {
	case common.CacheMemory:
		store := cache.NewMemoryStore(c.CacheSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.RunCleaner(ctx, time.Minute)
		}()
		return store, func() {}

	case common.CacheRedis:
		store := cache.NewRedisStore(&redis.Options{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unavailable, continuing without prediction cache")
			_ = store.Close()
			return nil, nil
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close redis cache")
			}
		}
	}
	return nil, nil
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings, srv *server.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.HandleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:              c.MetricsAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Str("addr", metricsServer.Addr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startModelGauges keeps the model age and availability gauges current.
func startModelGauges(ctx context.Context, wg *sync.WaitGroup, models *ml.ModelContext, m *metrics.Metrics) {
	m.SetModelState(models.Available(), models.Age().Seconds())

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetModelState(models.Available(), models.Age().Seconds())
			}
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, srv *server.Server, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown prediction server")
	}

	cancel() // Cancel context to stop all goroutines

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
