package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mselser95/dex-arb/internal/storage"
	"github.com/mselser95/dex-arb/internal/users"
	"github.com/mselser95/dex-arb/internal/watcher"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/mselser95/dex-arb/pkg/healthprobe"
	"github.com/mselser95/dex-arb/pkg/httpserver"
	"github.com/mselser95/dex-arb/pkg/websocket"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (app *App, err error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Undo partial setup on failure.
	var closers []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		cancel()
	}()

	healthChecker := setupHealthChecker()

	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup database: %w", err)
	}
	if db != nil {
		closers = append(closers, func() { _ = db.Close() })
		healthChecker.AddCheck("postgres", db.PingContext)
	}

	logSink, err := setupLogSink(ctx, cfg, logger, db, healthChecker)
	if err != nil {
		return nil, fmt.Errorf("setup log sink: %w", err)
	}
	closers = append(closers, func() { _ = logSink.Close() })

	logWriter := setupLogWriter(cfg, logger, logSink)

	pipeline, err := NewPipeline(cfg, logger, logWriter)
	if err != nil {
		return nil, fmt.Errorf("setup pipeline: %w", err)
	}
	closers = append(closers, pipeline.Close)

	userService := setupUsers(cfg, logger, db)
	hub := setupLogStream(cfg, logger, logWriter)

	var w *watcher.Watcher
	if !opts.DisableWatcher && len(cfg.WatchTokens) > 0 {
		w = setupWatcher(cfg, logger, pipeline)
	}

	httpServer := setupHTTPServer(cfg, logger, healthChecker, pipeline, logWriter, userService, hub, w)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		pipeline:      pipeline,
		db:            db,
		logSink:       logSink,
		logWriter:     logWriter,
		hub:           hub,
		watcher:       w,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

// setupDatabase opens Postgres only when a component is configured to use it.
func setupDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	if cfg.LogSinkMode != "postgres" && cfg.UserStoreMode != "postgres" {
		return nil, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	db, err := OpenDatabase(connectCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	err = storage.Migrate(connectCtx, db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

// OpenDatabase opens the configured Postgres database.
func OpenDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	return storage.OpenPostgres(ctx, &storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
}

func setupLogSink(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	healthChecker *healthprobe.HealthChecker,
) (storage.LogSink, error) {
	switch cfg.LogSinkMode {
	case "postgres":
		return storage.NewPostgresLogSink(db, logger), nil

	case "redis":
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		sink, err := storage.NewRedisLogSink(connectCtx, &storage.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Key:       cfg.RedisLogsKey,
			Retention: int64(cfg.LogQueryLimit) * 10,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis log sink: %w", err)
		}
		healthChecker.AddCheck("redis", sink.Ping)
		return sink, nil

	default:
		return storage.NewMemoryLogSink(cfg.LogQueryLimit*10, logger), nil
	}
}

func setupLogWriter(cfg *config.Config, logger *zap.Logger, sink storage.LogSink) *storage.AsyncWriter {
	return storage.NewAsyncWriter(&storage.AsyncWriterConfig{
		Sink:       sink,
		BufferSize: cfg.LogSinkBuffer,
		Logger:     logger,
	})
}

func setupUsers(cfg *config.Config, logger *zap.Logger, db *sql.DB) *users.Service {
	var store users.Store = users.NewMemoryStore()
	if cfg.UserStoreMode == "postgres" {
		store = users.NewPostgresStore(db, logger)
	}

	return users.New(&users.Config{
		Store:  store,
		Logger: logger,
	})
}

func setupLogStream(cfg *config.Config, logger *zap.Logger, logWriter *storage.AsyncWriter) *websocket.Hub {
	return websocket.New(&websocket.Config{
		Source:       logWriter,
		PingInterval: cfg.WSPingInterval,
		PongTimeout:  cfg.WSPongTimeout,
		SendBuffer:   cfg.WSSendBuffer,
		Logger:       logger,
	})
}

func setupWatcher(cfg *config.Config, logger *zap.Logger, pipeline *Pipeline) *watcher.Watcher {
	return watcher.New(&watcher.Config{
		Scanner:    pipeline.Engine,
		Tokens:     cfg.WatchTokens,
		Interval:   cfg.WatchInterval,
		Params:     DefaultParams(cfg),
		Triangular: cfg.ArbTriangular,
		Logger:     logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	pipeline *Pipeline,
	logWriter *storage.AsyncWriter,
	userService *users.Service,
	hub *websocket.Hub,
	w *watcher.Watcher,
) *httpserver.Server {
	serverCfg := &httpserver.Config{
		Port:           cfg.HTTPPort,
		RequestTimeout: cfg.HTTPRequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         logger,
		HealthChecker:  healthChecker,
		Scanner:        pipeline.Engine,
		Logs:           logWriter,
		LogQueryLimit:  cfg.LogQueryLimit,
		LogStream:      hub,
		Users:          userService,
		Breakers:       pipeline.Breakers,
		Defaults: httpserver.Defaults{
			Investment:   cfg.DefaultInvestment,
			Slippage:     cfg.DefaultSlippage,
			Fee:          cfg.DefaultFeePercentage,
			TokenAddress: cfg.DefaultTokenAddress,
			Triangular:   cfg.ArbTriangular,
		},
	}
	// A nil *watcher.Watcher must not become a non-nil interface.
	if w != nil {
		serverCfg.Watcher = w
	}

	return httpserver.New(serverCfg)
}
