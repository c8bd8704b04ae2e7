package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. It is safe to call more
// than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stream clients first; they hold hijacked connections Shutdown does not wait for.
	err := a.hub.Close()
	if err != nil {
		a.logger.Error("log-stream-close-error", zap.Error(err))
	}

	err = a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Watcher and server goroutines are done before the writer stops accepting.
	a.wg.Wait()

	err = a.logWriter.Close()
	if err != nil {
		a.logger.Error("log-writer-close-error", zap.Error(err))
	}

	err = a.logSink.Close()
	if err != nil {
		a.logger.Error("log-sink-close-error", zap.Error(err))
	}

	a.pipeline.Close()

	if a.db != nil {
		err = a.db.Close()
		if err != nil {
			a.logger.Error("database-close-error", zap.Error(err))
		}
	}

	a.logger.Info("application-shutdown-complete")
}
