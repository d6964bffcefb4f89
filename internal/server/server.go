// Package server exposes the prediction pipeline and the records store over
// HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"hemocheck/internal/pipeline"
	"hemocheck/internal/records"
)

// MetricsInterface is the subset of metrics the HTTP layer reports.
type MetricsInterface interface {
	RequestObserve(route, method string, status int, seconds float64)
	RateLimitedInc()
	LedgerWriteInc(outcome string)
	AuthAttemptInc(op, outcome string)
	ErrorsInc()
}

type noopMetrics struct{}

func (noopMetrics) RequestObserve(string, string, int, float64) {}
func (noopMetrics) RateLimitedInc()                             {}
func (noopMetrics) LedgerWriteInc(string)                       {}
func (noopMetrics) AuthAttemptInc(string, string)               {}
func (noopMetrics) ErrorsInc()                                  {}

// Config holds HTTP server settings.
type Config struct {
	Addr           string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server serves the prediction API.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	store    records.Store
	metrics  MetricsInterface
	limiter  *rate.Limiter
	server   *http.Server
}

// New wires the routes and middleware. A nil metrics disables reporting.
func New(cfg Config, p *pipeline.Pipeline, store records.Store, metrics MetricsInterface) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		store:    store,
		metrics:  metrics,
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the full middleware chain around the route table.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(tagRoute)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/save_prediction", s.handleSavePrediction).Methods(http.MethodPost)
	r.HandleFunc("/history/{userId}", s.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/model/info", s.handleModelInfo).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// The path matched a route, so keep it out of the unmatched series
		// without putting the raw path into a label.
		if rec, ok := w.(*statusRecorder); ok {
			rec.route = "method_not_allowed"
		}
		WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var h http.Handler = r
	h = s.rateLimit(h)
	h = s.cors(h)
	h = s.recoverer(h)
	h = s.accessLog(h)
	h = requestID(h)
	return h
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting prediction server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
