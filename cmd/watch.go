package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/dex-arb/internal/app"
	"github.com/mselser95/dex-arb/internal/format"
	"github.com/mselser95/dex-arb/internal/watcher"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-scan tokens on an interval and print the results",
	Long: `Scans each token immediately and then every --interval, printing the best
opportunity per scan until interrupted. Tokens default to WATCH_TOKENS.`,
	RunE: runWatch,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSlice("tokens", nil, "Token addresses to watch (default WATCH_TOKENS)")
	watchCmd.Flags().Duration("interval", 0, "Time between scans (default WATCH_INTERVAL)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	tokens, _ := cmd.Flags().GetStringSlice("tokens")
	if len(tokens) == 0 {
		tokens = cfg.WatchTokens
	}
	if len(tokens) == 0 {
		tokens = []string{cfg.DefaultTokenAddress}
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = cfg.WatchInterval
	}

	pipeline, err := app.NewPipeline(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer pipeline.Close()

	w := watcher.New(&watcher.Config{
		Scanner:    pipeline.Engine,
		Tokens:     tokens,
		Interval:   interval,
		Params:     app.DefaultParams(cfg),
		Triangular: cfg.ArbTriangular,
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx)
	}()

	fmt.Printf("Watching %d token(s) every %s. Press Ctrl+C to stop.\n\n", len(w.Tokens()), interval)

	for snap := range w.Updates() {
		printSnapshot(snap)
	}

	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run watcher: %w", err)
	}
	return nil
}

func printSnapshot(snap *watcher.Snapshot) {
	stamp := snap.ScannedAt.Format(time.TimeOnly)

	if snap.Err != nil {
		fmt.Printf("[%s] %s  error: %v\n", stamp, snap.Token, snap.Err)
		return
	}

	result := snap.Result
	if len(result.Opportunities) == 0 {
		fmt.Printf("[%s] %s  no opportunities (%d quotes, %d warnings)\n",
			stamp, snap.Token, result.QuotesUsed, len(result.Warnings))
		return
	}

	best := format.FormatOpportunity(result.Opportunities[0])
	fmt.Printf("[%s] %s  %d opportunities, best %s %s -> %s net %s profit %s\n",
		stamp, snap.Token, len(result.Opportunities), best.Kind,
		best.BuyVenue, best.SellVenue, best.NetSpread, best.ProfitDisplay)
}
