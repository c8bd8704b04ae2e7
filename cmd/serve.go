package cmd

import (
	"fmt"

	"github.com/mselser95/dex-arb/internal/app"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the arbitrage API server",
	Long: `Starts the HTTP API, which will:
1. Accept scan requests on POST /opportunities
2. Record one log line per scan and serve them on GET /logs
3. Register users on POST /register
4. Re-scan WATCH_TOKENS on an interval, unless --no-watch is given`,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-watch", false, "Disable the background watcher even if WATCH_TOKENS is set")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	noWatch, _ := cmd.Flags().GetBool("no-watch")

	application, err := app.New(cfg, logger, &app.Options{
		DisableWatcher: noWatch,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
