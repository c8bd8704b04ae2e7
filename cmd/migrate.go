package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/dex-arb/internal/app"
	"github.com/mselser95/dex-arb/internal/storage"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the Postgres tables for logs and users",
	Long: `Connects to the configured Postgres database and creates the scan log,
users and user profile tables if they do not exist. Safe to run repeatedly.`,
	RunE: runMigrate,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Duration("timeout", 30*time.Second, "Maximum time to connect and migrate")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

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

	db, err := app.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	err = storage.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Printf("Migrated %s on %s:%s\n", cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort)
	return nil
}
