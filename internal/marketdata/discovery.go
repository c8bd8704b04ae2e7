package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mselser95/dex-arb/pkg/cache"
	"github.com/mselser95/dex-arb/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Discovery resolves which venues quote a token.
type Discovery struct {
	client    Client
	cache     cache.Cache
	ttl       time.Duration
	maxVenues int
	logger    *zap.Logger
}

// DiscoveryConfig holds discovery configuration.
type DiscoveryConfig struct {
	Client    Client
	Cache     cache.Cache // optional
	TTL       time.Duration
	MaxVenues int
	Logger    *zap.Logger
}

// VenueFilter narrows discovery to a chain and/or a set of DEX ids.
type VenueFilter struct {
	ChainID string
	DexIDs  []string
}

func (f VenueFilter) allows(p *types.DexPair) bool {
	if f.ChainID != "" && !strings.EqualFold(f.ChainID, p.ChainID) {
		return false
	}
	if len(f.DexIDs) == 0 {
		return true
	}
	for _, id := range f.DexIDs {
		if strings.EqualFold(id, p.DexID) {
			return true
		}
	}
	return false
}

// NewDiscovery creates a venue discovery service.
func NewDiscovery(cfg *DiscoveryConfig) *Discovery {
	maxVenues := cfg.MaxVenues
	if maxVenues < 2 {
		maxVenues = 30
	}

	return &Discovery{
		client:    cfg.Client,
		cache:     cfg.Cache,
		ttl:       cfg.TTL,
		maxVenues: maxVenues,
		logger:    cfg.Logger,
	}
}

// Venues returns the token's pools, most liquid first, capped at MaxVenues.
func (d *Discovery) Venues(ctx context.Context, token string, filter VenueFilter) ([]types.Venue, error) {
	pairs, err := d.pairs(ctx, token)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(pairs))
	venues := make([]types.Venue, 0, len(pairs))
	for i := range pairs {
		p := &pairs[i]
		if p.PairAddress == "" || !filter.allows(p) {
			continue
		}
		if !types.SameAddress(p.BaseToken.Address, token) && !types.SameAddress(p.QuoteToken.Address, token) {
			continue
		}

		v := p.VenueOf()
		if seen[v.ID()] {
			continue
		}
		seen[v.ID()] = true
		venues = append(venues, v)
	}

	venues = rankVenues(venues, d.maxVenues)
	VenuesDiscovered.Observe(float64(len(venues)))

	d.logger.Debug("venues-discovered",
		zap.String("token", token),
		zap.Int("pairs", len(pairs)),
		zap.Int("venues", len(venues)))

	return venues, nil
}

// BridgeVenues finds pools that connect the token's most liquid counter tokens
// with each other. Triangular cycles need one such pool per cycle.
func (d *Discovery) BridgeVenues(ctx context.Context, token string, filter VenueFilter, maxCounters int) ([]types.Venue, error) {
	if maxCounters < 2 {
		return nil, nil
	}

	pairs, err := d.pairs(ctx, token)
	if err != nil {
		return nil, err
	}

	counters := topCounterTokens(pairs, token, filter, maxCounters)
	if len(counters) < 2 {
		return nil, nil
	}

	// Lookups are independent; a failed one only removes its bridges.
	results := make([][]types.DexPair, len(counters))
	var g errgroup.Group
	for i, counter := range counters {
		g.Go(func() error {
			counterPairs, err := d.pairs(ctx, counter)
			if err != nil {
				d.logger.Warn("bridge-lookup-failed",
					zap.String("counter-token", counter),
					zap.Error(err))
				return nil
			}
			results[i] = counterPairs
			return nil
		})
	}
	_ = g.Wait()

	isCounter := make(map[string]bool, len(counters))
	for _, c := range counters {
		isCounter[types.CanonicalAddress(c)] = true
	}

	seen := make(map[string]bool)
	bridges := make([]types.Venue, 0)
	for _, counterPairs := range results {
		for i := range counterPairs {
			p := &counterPairs[i]
			if p.PairAddress == "" || (filter.ChainID != "" && !strings.EqualFold(filter.ChainID, p.ChainID)) {
				continue
			}
			base := types.CanonicalAddress(p.BaseToken.Address)
			quote := types.CanonicalAddress(p.QuoteToken.Address)
			if base == quote || !isCounter[base] || !isCounter[quote] {
				continue
			}

			v := p.VenueOf()
			if seen[v.ID()] {
				continue
			}
			seen[v.ID()] = true
			bridges = append(bridges, v)
		}
	}

	bridges = rankVenues(bridges, d.maxVenues)

	d.logger.Debug("bridge-venues-discovered",
		zap.String("token", token),
		zap.Strings("counter-tokens", counters),
		zap.Int("bridges", len(bridges)))

	return bridges, nil
}

func (d *Discovery) pairs(ctx context.Context, token string) ([]types.DexPair, error) {
	key := "pairs:" + types.CanonicalAddress(token)

	if d.cache != nil {
		if cached, found := d.cache.Get(key); found {
			if pairs, ok := cached.([]types.DexPair); ok {
				return pairs, nil
			}
		}
	}

	pairs, err := d.client.TokenPairs(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("discover venues: %w", err)
	}

	if d.cache != nil && d.ttl > 0 {
		d.cache.Set(key, pairs, d.ttl)
	}

	return pairs, nil
}

// rankVenues orders by liquidity descending, then id, and truncates.
func rankVenues(venues []types.Venue, limit int) []types.Venue {
	sort.SliceStable(venues, func(i, j int) bool {
		if venues[i].LiquidityUSD != venues[j].LiquidityUSD {
			return venues[i].LiquidityUSD > venues[j].LiquidityUSD
		}
		return venues[i].ID() < venues[j].ID()
	})

	if limit > 0 && len(venues) > limit {
		venues = venues[:limit]
	}
	return venues
}

// topCounterTokens ranks the tokens paired against token by summed USD liquidity.
func topCounterTokens(pairs []types.DexPair, token string, filter VenueFilter, n int) []string {
	liquidity := make(map[string]float64)
	for i := range pairs {
		p := &pairs[i]
		if !filter.allows(p) {
			continue
		}

		var counter string
		switch {
		case types.SameAddress(p.BaseToken.Address, token):
			counter = p.QuoteToken.Address
		case types.SameAddress(p.QuoteToken.Address, token):
			counter = p.BaseToken.Address
		default:
			continue
		}
		if counter == "" {
			continue
		}

		usd := 0.0
		if p.Liquidity != nil {
			usd = p.Liquidity.USD.InexactFloat64()
		}
		liquidity[types.CanonicalAddress(counter)] += usd
	}

	counters := make([]string, 0, len(liquidity))
	for addr := range liquidity {
		counters = append(counters, addr)
	}
	sort.Slice(counters, func(i, j int) bool {
		if liquidity[counters[i]] != liquidity[counters[j]] {
			return liquidity[counters[i]] > liquidity[counters[j]]
		}
		return counters[i] < counters[j]
	})

	if len(counters) > n {
		counters = counters[:n]
	}
	return counters
}
