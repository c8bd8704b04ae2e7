package app

import (
	"fmt"

	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/internal/circuitbreaker"
	"github.com/mselser95/dex-arb/internal/engine"
	"github.com/mselser95/dex-arb/internal/marketdata"
	"github.com/mselser95/dex-arb/pkg/cache"
	"github.com/mselser95/dex-arb/pkg/config"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pipeline is the scan stack shared by the server and the one-shot commands:
// Dexscreener client, venue discovery, fetcher, detector and engine.
type Pipeline struct {
	Engine   *engine.Service
	Breakers *circuitbreaker.Registry
	cache    *cache.RistrettoCache
}

// NewPipeline wires the scan stack. logs may be nil.
func NewPipeline(cfg *config.Config, logger *zap.Logger, logs engine.LogWriter) (*Pipeline, error) {
	venueCache, err := cache.NewRistrettoCache(cache.DefaultRistrettoConfig("venues", 10000, logger))
	if err != nil {
		return nil, fmt.Errorf("create venue cache: %w", err)
	}

	breakers, err := circuitbreaker.New(&circuitbreaker.Config{
		MaxFailures: uint32(cfg.BreakerMaxFailures),
		OpenTimeout: cfg.BreakerOpenTimeout,
		Logger:      logger,
	})
	if err != nil {
		venueCache.Close()
		return nil, fmt.Errorf("create circuit breakers: %w", err)
	}

	client := marketdata.NewDexscreenerClient(&marketdata.ClientConfig{
		BaseURL:   cfg.DexscreenerURL,
		Timeout:   cfg.DexscreenerTimeout,
		RateLimit: cfg.DexscreenerRateLimit,
		Burst:     cfg.DexscreenerBurst,
		Breakers:  breakers,
		Logger:    logger,
	})

	discovery := marketdata.NewDiscovery(&marketdata.DiscoveryConfig{
		Client:    client,
		Cache:     venueCache,
		TTL:       cfg.VenueCacheTTL,
		MaxVenues: cfg.FetchMaxVenues,
		Logger:    logger,
	})

	fetcher := marketdata.NewFetcher(&marketdata.FetcherConfig{
		Client:      client,
		Deadline:    cfg.FetchDeadline,
		Concurrency: cfg.FetchConcurrency,
		Logger:      logger,
	})

	svc := engine.New(&engine.Config{
		Discovery:       discovery,
		Fetcher:         fetcher,
		Detector:        arbitrage.New(arbitrage.Config{Triangular: cfg.ArbTriangular, Logger: logger}),
		Logs:            logs,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		BridgeTokens:    cfg.ArbBridgeTokens,
		Logger:          logger,
	})

	return &Pipeline{
		Engine:   svc,
		Breakers: breakers,
		cache:    venueCache,
	}, nil
}

// Close releases the venue cache.
func (p *Pipeline) Close() {
	p.cache.Close()
}

// DefaultParams returns the configured request defaults.
func DefaultParams(cfg *config.Config) arbitrage.Params {
	return arbitrage.Params{
		Investment: decimal.NewFromFloat(cfg.DefaultInvestment),
		Slippage:   decimal.NewFromFloat(cfg.DefaultSlippage),
		Fee:        decimal.NewFromFloat(cfg.DefaultFeePercentage),
	}
}
