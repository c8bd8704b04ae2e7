package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/internal/app"
	"github.com/mselser95/dex-arb/internal/engine"
	"github.com/mselser95/dex-arb/internal/format"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single arbitrage scan for a token",
	Long: `Discovers every pool that trades the token, fetches a quote from each,
and prints the ranked opportunities. Flags left unset fall back to the
DEFAULT_* environment configuration.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd)
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("token", "t", "", "Token address to scan (default DEFAULT_TOKEN_ADDRESS)")
	cmd.Flags().String("investment", "", "Investment amount in USD (default DEFAULT_INVESTMENT)")
	cmd.Flags().String("slippage", "", "Slippage as a fraction, e.g. 0.005 (default DEFAULT_SLIPPAGE)")
	cmd.Flags().String("fee", "", "Fee per swap as a fraction, e.g. 0.003 (default DEFAULT_FEE_PERCENTAGE)")
	cmd.Flags().StringSlice("venues", nil, "Only consider these DEX ids")
	cmd.Flags().String("chain", "", "Only consider pools on this chain")
	cmd.Flags().Bool("triangular", true, "Also search triangular cycles")
	cmd.Flags().Bool("json", false, "Print the response as JSON")
}

// scanOutput is the JSON shape printed by --json.
type scanOutput struct {
	ScanID        string               `json:"scan_id"`
	TokenAddress  string               `json:"token_address"`
	Opportunities []format.Opportunity `json:"opportunities"`
	Warnings      []types.Warning      `json:"warnings"`
}

func runScan(cmd *cobra.Command, args []string) error {
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

	req, err := scanRequest(cmd, cfg)
	if err != nil {
		return err
	}

	pipeline, err := app.NewPipeline(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer pipeline.Close()

	result, err := pipeline.Engine.Scan(ctx, req)
	if err != nil {
		return fmt.Errorf("scan %s: %w", req.TokenAddress, err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		return printScanJSON(result)
	}

	printScanTable(result)
	return nil
}

// scanRequest builds an engine request from flags, falling back to configured defaults.
func scanRequest(cmd *cobra.Command, cfg *config.Config) (engine.Request, error) {
	params := app.DefaultParams(cfg)

	overrides := []struct {
		flag   string
		target *decimal.Decimal
	}{
		{"investment", &params.Investment},
		{"slippage", &params.Slippage},
		{"fee", &params.Fee},
	}
	for _, o := range overrides {
		raw, _ := cmd.Flags().GetString(o.flag)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return engine.Request{}, fmt.Errorf("invalid --%s %q: %w", o.flag, raw, err)
		}
		*o.target = d
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = cfg.DefaultTokenAddress
	}
	venues, _ := cmd.Flags().GetStringSlice("venues")
	chain, _ := cmd.Flags().GetString("chain")
	triangular, _ := cmd.Flags().GetBool("triangular")

	return engine.Request{
		TokenAddress: token,
		Params:       params,
		DexIDs:       venues,
		ChainID:      chain,
		Triangular:   triangular && cfg.ArbTriangular,
	}, nil
}

func printScanJSON(result *engine.Result) error {
	out := scanOutput{
		ScanID:        result.ScanID,
		TokenAddress:  result.TokenAddress,
		Opportunities: format.Opportunities(result.Opportunities),
		Warnings:      result.Warnings,
	}
	if out.Warnings == nil {
		out.Warnings = []types.Warning{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	err := enc.Encode(out)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

func printScanTable(result *engine.Result) {
	fmt.Printf("Scan %s for %s: %d venues queried, %d quotes used\n\n",
		result.ScanID, result.TokenAddress, result.VenuesQueried, result.QuotesUsed)

	opps := format.Opportunities(result.Opportunities)
	if len(opps) == 0 {
		fmt.Println("No opportunities found.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "#\tKIND\tBUY\tSELL\tNET SPREAD\tSIZE\tPROFIT\tLIQUIDITY\n")
		fmt.Fprintf(w, "-\t----\t---\t----\t----------\t----\t------\t---------\n")
		for i := range opps {
			o := &opps[i]
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				i+1, o.Kind, o.BuyVenue, o.SellVenue, o.NetSpread,
				o.MaxExecutableSize, o.ProfitDisplay, o.LiquidityDisplay)
		}
		w.Flush()
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\nWarnings (%d):\n", len(result.Warnings))
		for _, warning := range result.Warnings {
			fmt.Printf("  %s [%s]: %s\n", warning.Code, warning.Venue, warning.Message)
		}
	}
}
