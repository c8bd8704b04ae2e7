package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/dex-arb/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves one quote per venue concurrently under a shared deadline.
type Fetcher struct {
	client      Client
	deadline    time.Duration
	concurrency int
	logger      *zap.Logger
}

// FetcherConfig holds fetcher configuration.
type FetcherConfig struct {
	Client      Client
	Deadline    time.Duration
	Concurrency int
	Logger      *zap.Logger
}

// FetchResult is what a fan-out produced. Quotes keep venue order.
type FetchResult struct {
	Quotes    []types.RawQuote
	Warnings  []types.Warning
	Attempted int
}

type venueResult struct {
	index int
	quote types.RawQuote
	err   error
}

// NewFetcher creates a fetcher bound to an injected market-data client.
func NewFetcher(cfg *FetcherConfig) *Fetcher {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Fetcher{
		client:      cfg.Client,
		deadline:    cfg.Deadline,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

// Fetch makes one attempt per venue. Failed and late venues are omitted and
// reported as VenueFetchFailure warnings. If ctx is already done every venue
// is reported that way, so callers see too few quotes rather than an error.
func (f *Fetcher) Fetch(ctx context.Context, token string, venues []types.Venue) (*FetchResult, error) {
	result := &FetchResult{
		Quotes:    make([]types.RawQuote, 0, len(venues)),
		Warnings:  make([]types.Warning, 0),
		Attempted: len(venues),
	}
	if len(venues) == 0 {
		return result, nil
	}

	err := ctx.Err()
	if err != nil {
		for _, venue := range venues {
			VenueFetchFailuresTotal.WithLabelValues("deadline").Inc()
			result.Warnings = append(result.Warnings,
				types.NewVenueFetchFailure(venue.ID(), fmt.Errorf("fetch skipped: %w", err)).Warning())
		}
		f.logger.Warn("venue-fetch-skipped",
			zap.String("token", token),
			zap.Int("venues", len(venues)),
			zap.Error(err))
		return result, nil
	}

	start := time.Now()
	defer func() {
		FetchDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	if f.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.deadline)
		defer cancel()
	}

	// Buffered so late tasks never block once we stop listening.
	results := make(chan venueResult, len(venues))

	go func() {
		var g errgroup.Group
		g.SetLimit(f.concurrency)
		for i, venue := range venues {
			g.Go(func() error {
				results <- f.fetchOne(ctx, i, token, venue)
				return nil
			})
		}
		_ = g.Wait()
	}()

	collected := make([]*venueResult, len(venues))
	received := 0

collect:
	for received < len(venues) {
		select {
		case r := <-results:
			collected[r.index] = &r
			received++
		case <-ctx.Done():
			break collect
		}
	}

	// Pick up anything that landed together with the deadline.
drain:
	for received < len(venues) {
		select {
		case r := <-results:
			collected[r.index] = &r
			received++
		default:
			break drain
		}
	}

	for i, venue := range venues {
		r := collected[i]
		switch {
		case r == nil:
			VenueFetchFailuresTotal.WithLabelValues("deadline").Inc()
			result.Warnings = append(result.Warnings,
				types.NewVenueFetchFailure(venue.ID(), fmt.Errorf("deadline exceeded: %w", ctx.Err())).Warning())
		case r.err != nil:
			VenueFetchFailuresTotal.WithLabelValues("error").Inc()
			result.Warnings = append(result.Warnings, types.NewVenueFetchFailure(venue.ID(), r.err).Warning())
		default:
			result.Quotes = append(result.Quotes, r.quote)
		}
	}

	for _, w := range result.Warnings {
		f.logger.Warn("venue-fetch-failed",
			zap.String("token", token),
			zap.String("venue", w.Venue),
			zap.String("reason", w.Message))
	}

	f.logger.Debug("venue-fetch-complete",
		zap.String("token", token),
		zap.Int("attempted", len(venues)),
		zap.Int("succeeded", len(result.Quotes)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, index int, token string, venue types.Venue) venueResult {
	err := ctx.Err()
	if err != nil {
		return venueResult{index: index, err: err}
	}

	payload, err := f.client.PairPayload(ctx, venue)
	if err != nil {
		return venueResult{index: index, err: err}
	}

	return venueResult{
		index: index,
		quote: types.RawQuote{
			Venue:        venue,
			TokenAddress: token,
			Payload:      payload,
			FetchedAt:    time.Now().UTC(),
		},
	}
}
