package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "dex-arb",
	Short: "DEX arbitrage opportunity scanner",
	Long: `DEX arbitrage scanner that fetches quotes for a token from every pool
Dexscreener knows about, normalizes them, and reports cross-venue and
triangular price discrepancies that survive fees and slippage.

Run "serve" for the HTTP API or "scan" for a one-shot scan from the terminal.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadEnvFile,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "Dotenv file to load before reading configuration")
}

// loadEnvFile loads the dotenv file if it exists. Variables already set in the
// environment win.
func loadEnvFile(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
