package app

import (
	"context"
	"database/sql"
	"sync"

	"github.com/mselser95/dex-arb/internal/storage"
	"github.com/mselser95/dex-arb/internal/watcher"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/mselser95/dex-arb/pkg/healthprobe"
	"github.com/mselser95/dex-arb/pkg/httpserver"
	"github.com/mselser95/dex-arb/pkg/websocket"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	pipeline      *Pipeline
	db            *sql.DB
	logSink       storage.LogSink
	logWriter     *storage.AsyncWriter
	hub           *websocket.Hub
	watcher       *watcher.Watcher
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	shutdownOnce  sync.Once
}

// Options holds application options.
type Options struct {
	DisableWatcher bool
}
