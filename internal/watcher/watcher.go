// Package watcher periodically scans a fixed set of tokens.
package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/internal/engine"
	"github.com/mselser95/dex-arb/pkg/types"
	"go.uber.org/zap"
)

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// Snapshot is the outcome of the most recent scan of a token.
type Snapshot struct {
	Token     string
	Result    *engine.Result
	Err       error
	ScannedAt time.Time
}

// Watcher polls its tokens on a fixed interval until its context is cancelled.
type Watcher struct {
	scanner    Scanner
	tokens     []string
	interval   time.Duration
	params     arbitrage.Params
	triangular bool
	logger     *zap.Logger

	mu       sync.RWMutex
	latest   map[string]*Snapshot
	updateCh chan *Snapshot
}

// Config holds watcher configuration.
type Config struct {
	Scanner    Scanner
	Tokens     []string
	Interval   time.Duration
	Params     arbitrage.Params
	Triangular bool
	Logger     *zap.Logger
}

// New creates a new watcher.
func New(cfg *Config) *Watcher {
	tokens := make([]string, 0, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		if token != "" {
			tokens = append(tokens, types.CanonicalAddress(token))
		}
	}

	return &Watcher{
		scanner:    cfg.Scanner,
		tokens:     tokens,
		interval:   cfg.Interval,
		params:     cfg.Params,
		triangular: cfg.Triangular,
		logger:     cfg.Logger,
		latest:     make(map[string]*Snapshot),
		updateCh:   make(chan *Snapshot, 100),
	}
}

// Run scans immediately and then on every tick. It returns ctx.Err() on
// cancellation and closes the updates channel.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.updateCh)

	if len(w.tokens) == 0 {
		return errors.New("watcher has no tokens")
	}
	if w.interval <= 0 {
		return errors.New("watcher interval must be positive")
	}

	w.logger.Info("watcher-starting",
		zap.Strings("tokens", w.tokens),
		zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher-stopping")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	start := time.Now()
	defer func() {
		PollDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	for _, token := range w.tokens {
		if ctx.Err() != nil {
			return
		}
		w.scanToken(ctx, token)
	}
}

func (w *Watcher) scanToken(ctx context.Context, token string) {
	result, err := w.scanner.Scan(ctx, engine.Request{
		TokenAddress: token,
		Params:       w.params,
		Triangular:   w.triangular,
	})

	snap := &Snapshot{
		Token:     token,
		Result:    result,
		Err:       err,
		ScannedAt: time.Now().UTC(),
	}

	w.mu.Lock()
	w.latest[token] = snap
	w.mu.Unlock()

	if err != nil {
		ScanErrorsTotal.WithLabelValues(string(types.CodeOf(err))).Inc()
		w.logger.Warn("watch-scan-failed", zap.String("token", token), zap.Error(err))
	} else {
		LatestOpportunities.WithLabelValues(token).Set(float64(len(result.Opportunities)))
		if len(result.Opportunities) > 0 {
			BestNetSpread.WithLabelValues(token).Set(result.Opportunities[0].NetSpread.InexactFloat64())
		} else {
			BestNetSpread.WithLabelValues(token).Set(0)
		}
	}

	select {
	case w.updateCh <- snap:
	default:
		w.logger.Warn("watch-updates-channel-full", zap.String("token", token))
	}
}

// Latest returns the most recent snapshot for a token, or nil.
func (w *Watcher) Latest(token string) *Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest[types.CanonicalAddress(token)]
}

// Updates returns the channel every snapshot is published on.
func (w *Watcher) Updates() <-chan *Snapshot {
	return w.updateCh
}

// Tokens returns the watched tokens in canonical form.
func (w *Watcher) Tokens() []string {
	return append([]string(nil), w.tokens...)
}
