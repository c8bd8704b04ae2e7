// Package engine runs one arbitrage scan: discover venues, fetch quotes,
// normalize, detect. Operational log lines are handed to a fire-and-forget
// writer; the scan never waits on them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/internal/marketdata"
	"github.com/mselser95/dex-arb/internal/normalize"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// VenueDiscoverer lists the pools that quote a token.
type VenueDiscoverer interface {
	Venues(ctx context.Context, token string, filter marketdata.VenueFilter) ([]types.Venue, error)
	BridgeVenues(ctx context.Context, token string, filter marketdata.VenueFilter, maxCounters int) ([]types.Venue, error)
}

// QuoteFetcher fetches raw quotes from venues.
type QuoteFetcher interface {
	Fetch(ctx context.Context, token string, venues []types.Venue) (*marketdata.FetchResult, error)
}

// LogWriter accepts operational log lines without blocking.
type LogWriter interface {
	Write(message string)
}

// Request is one scan request. Params are used exactly as given.
type Request struct {
	TokenAddress string
	Params       arbitrage.Params
	DexIDs       []string
	ChainID      string
	Triangular   bool
}

// Result is a completed scan.
type Result struct {
	ScanID        string
	TokenAddress  string
	Opportunities []*arbitrage.Opportunity
	Warnings      []types.Warning
	VenuesQueried int
	QuotesUsed    int
}

// Service runs scans.
type Service struct {
	discovery    VenueDiscoverer
	fetcher      QuoteFetcher
	detector     *arbitrage.Detector
	logs         LogWriter
	minLiquidity decimal.Decimal
	bridgeTokens int
	logger       *zap.Logger
}

// Config holds engine configuration.
type Config struct {
	Discovery       VenueDiscoverer
	Fetcher         QuoteFetcher
	Detector        *arbitrage.Detector
	Logs            LogWriter // optional
	MinLiquidityUSD float64
	BridgeTokens    int // counter tokens searched for triangular bridges
	Logger          *zap.Logger
}

// New creates a new engine service.
func New(cfg *Config) *Service {
	return &Service{
		discovery:    cfg.Discovery,
		fetcher:      cfg.Fetcher,
		detector:     cfg.Detector,
		logs:         cfg.Logs,
		minLiquidity: decimal.NewFromFloat(cfg.MinLiquidityUSD),
		bridgeTokens: cfg.BridgeTokens,
		logger:       cfg.Logger,
	}
}

// Scan runs the full pipeline for one token. Per-venue problems become
// warnings; fewer than two usable quotes fails with InsufficientQuotes.
func (s *Service) Scan(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	result, err := s.scan(ctx, req)

	ScanDurationSeconds.Observe(time.Since(start).Seconds())
	ScansTotal.WithLabelValues(scanOutcome(err)).Inc()

	if err != nil {
		s.logger.Warn("scan-failed",
			zap.String("token", req.TokenAddress),
			zap.String("code", string(types.CodeOf(err))),
			zap.Error(err))
		s.emit(fmt.Sprintf("scan failed token=%s code=%s", req.TokenAddress, types.CodeOf(err)))
		return nil, err
	}

	s.logger.Info("scan-complete",
		zap.String("scan-id", result.ScanID),
		zap.String("token", result.TokenAddress),
		zap.Int("venues", result.VenuesQueried),
		zap.Int("quotes", result.QuotesUsed),
		zap.Int("opportunities", len(result.Opportunities)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", time.Since(start)))

	s.emit(summary(result))
	for _, w := range result.Warnings {
		s.emit(fmt.Sprintf("scan %s venue %s %s: %s", shortID(result.ScanID), w.Venue, w.Code, w.Message))
	}

	return result, nil
}

func (s *Service) scan(ctx context.Context, req Request) (*Result, error) {
	token := strings.TrimSpace(req.TokenAddress)
	if token == "" {
		return nil, types.NewInvalidRequest("token_address is required")
	}
	if !types.ValidTokenAddress(token) {
		return nil, types.NewInvalidRequest("token_address %q is not a valid address", token)
	}
	err := req.Params.Validate()
	if err != nil {
		return nil, err
	}

	filter := marketdata.VenueFilter{ChainID: req.ChainID, DexIDs: req.DexIDs}

	venues, err := s.discovery.Venues(ctx, token, filter)
	if err != nil {
		return nil, types.NewInternalError(err)
	}

	result := &Result{
		ScanID:        uuid.New().String(),
		TokenAddress:  types.CanonicalAddress(token),
		Warnings:      make([]types.Warning, 0),
		VenuesQueried: len(venues),
	}

	if len(venues) < 2 {
		return nil, types.NewInsufficientQuotes(len(venues))
	}

	var (
		fetched    *marketdata.FetchResult
		bridgeRaws []types.RawQuote
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fetched, err = s.fetcher.Fetch(gctx, token, venues)
		return err
	})
	if req.Triangular && s.detector.Triangular() && s.bridgeTokens >= 2 {
		g.Go(func() error {
			bridgeRaws = s.fetchBridges(gctx, token, filter)
			return nil
		})
	}
	err = g.Wait()
	if err != nil {
		return nil, types.NewInternalError(err)
	}

	result.Warnings = append(result.Warnings, fetched.Warnings...)

	quotes := make([]types.NormalizedQuote, 0, len(fetched.Quotes))
	for _, raw := range fetched.Quotes {
		q, err := normalize.Normalize(raw)
		if err != nil {
			result.Warnings = append(result.Warnings, warningOf(raw.Venue.ID(), err))
			continue
		}
		if q.LiquidityUSD.LessThan(s.minLiquidity) {
			result.Warnings = append(result.Warnings,
				types.NewLowLiquidity(q.VenueID, q.LiquidityUSD.StringFixed(2), s.minLiquidity.StringFixed(2)).Warning())
			continue
		}
		quotes = append(quotes, q)
	}

	for _, w := range result.Warnings {
		WarningsTotal.WithLabelValues(string(w.Code)).Inc()
	}

	result.QuotesUsed = len(quotes)
	UsableQuotes.Observe(float64(len(quotes)))
	if len(quotes) < 2 {
		return nil, types.NewInsufficientQuotes(len(quotes))
	}

	bridges := make([]types.NormalizedQuote, 0, len(bridgeRaws))
	for _, raw := range bridgeRaws {
		q, err := normalize.NormalizePool(raw)
		if err != nil || q.LiquidityUSD.LessThan(s.minLiquidity) {
			continue
		}
		bridges = append(bridges, q)
	}

	result.Opportunities = s.detector.Detect(quotes, bridges, req.Params)

	return result, nil
}

// fetchBridges is best effort: any failure just disables triangular cycles.
func (s *Service) fetchBridges(ctx context.Context, token string, filter marketdata.VenueFilter) []types.RawQuote {
	venues, err := s.discovery.BridgeVenues(ctx, token, filter, s.bridgeTokens)
	if err != nil {
		s.logger.Warn("bridge-discovery-failed", zap.String("token", token), zap.Error(err))
		return nil
	}
	if len(venues) == 0 {
		return nil
	}

	fetched, err := s.fetcher.Fetch(ctx, "", venues)
	if err != nil {
		s.logger.Warn("bridge-fetch-failed", zap.String("token", token), zap.Error(err))
		return nil
	}

	return fetched.Quotes
}

func (s *Service) emit(message string) {
	if s.logs == nil {
		return
	}
	s.logs.Write(message)
}

func warningOf(venue string, err error) types.Warning {
	var engineErr *types.EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Warning()
	}
	return types.NewUnsupportedVenueFormat(venue, "normalize quote", err).Warning()
}

func summary(r *Result) string {
	msg := fmt.Sprintf("scan %s token=%s venues=%d quotes=%d opportunities=%d warnings=%d",
		shortID(r.ScanID), r.TokenAddress, r.VenuesQueried, r.QuotesUsed, len(r.Opportunities), len(r.Warnings))

	if len(r.Opportunities) > 0 {
		best := r.Opportunities[0]
		msg += fmt.Sprintf(" best=%s->%s net=%s", best.BuyVenue, best.SellVenue, best.NetSpread.StringFixed(8))
	}

	return msg
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func scanOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(types.CodeOf(err)))
}
