package app

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("log-sink", a.cfg.LogSinkMode),
		zap.String("user-store", a.cfg.UserStoreMode),
		zap.Bool("triangular", a.cfg.ArbTriangular),
		zap.String("log-level", a.cfg.LogLevel))

	a.startComponents()

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("dexscreener-url", a.cfg.DexscreenerURL),
		zap.Int("watched-tokens", len(a.cfg.WatchTokens)))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.logWriter.Start()

	a.wg.Add(1)
	go a.runHTTPServer()

	if a.watcher != nil {
		a.wg.Add(1)
		go a.runWatcher()
	}
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
		// Nothing left to serve.
		a.cancel()
	}
}

func (a *App) runWatcher() {
	defer a.wg.Done()
	err := a.watcher.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("watcher-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
