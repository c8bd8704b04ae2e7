package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mselser95/dex-arb/internal/circuitbreaker"
	"github.com/mselser95/dex-arb/internal/engine"
	"github.com/mselser95/dex-arb/internal/storage"
	"github.com/mselser95/dex-arb/internal/users"
	"github.com/mselser95/dex-arb/internal/watcher"
	"github.com/mselser95/dex-arb/pkg/healthprobe"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Scanner runs an arbitrage scan.
type Scanner interface {
	Scan(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// LogReader reads recent log entries, newest first.
type LogReader interface {
	Recent(ctx context.Context, limit int) ([]storage.LogEntry, error)
}

// Registrar creates users.
type Registrar interface {
	Register(ctx context.Context, email string, password string) (*users.User, error)
}

// BreakerReporter exposes per-venue circuit breaker state.
type BreakerReporter interface {
	Statuses() []circuitbreaker.Status
}

// SnapshotReader returns the latest watched scan of a token.
type SnapshotReader interface {
	Latest(token string) *watcher.Snapshot
}

// Defaults fill in omitted request fields.
type Defaults struct {
	Investment   float64
	Slippage     float64
	Fee          float64
	TokenAddress string
	Triangular   bool
}

// Server provides the public API plus metrics and health checks.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port           string
	RequestTimeout time.Duration
	CORSOrigins    []string
	Logger         *zap.Logger
	HealthChecker  *healthprobe.HealthChecker

	Scanner       Scanner
	Logs          LogReader
	LogQueryLimit int
	LogStream     http.Handler // optional
	Users         Registrar
	Defaults      Defaults
	Breakers      BreakerReporter // optional
	Watcher       SnapshotReader  // optional
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	h := &handlers{
		scanner:  cfg.Scanner,
		logs:     cfg.Logs,
		logLimit: cfg.LogQueryLimit,
		users:    cfg.Users,
		defaults: cfg.Defaults,
		breakers: cfg.Breakers,
		watcher:  cfg.Watcher,
		logger:   cfg.Logger,
	}
	if h.logLimit <= 0 {
		h.logLimit = storage.DefaultQueryLimit
	}

	// The stream is long-lived and stays outside the request timeout.
	if cfg.LogStream != nil {
		r.Handle("/logs/stream", cfg.LogStream)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Use(instrument)

		if cfg.Scanner != nil {
			r.Post("/opportunities", h.opportunities)
		}
		if cfg.Logs != nil {
			r.Get("/logs", h.recentLogs)
		}
		if cfg.Users != nil {
			r.Post("/register", h.register)
		}
		if cfg.Breakers != nil {
			r.Get("/venues/breakers", h.breakerStatuses)
		}
		if cfg.Watcher != nil {
			r.Get("/watch/{token}", h.latestSnapshot)
		}
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
