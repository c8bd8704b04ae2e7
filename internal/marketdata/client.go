package marketdata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/internal/circuitbreaker"
	"github.com/mselser95/dex-arb/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the market-data API the discovery and fetch stages depend on.
type Client interface {
	// TokenPairs lists every pool that trades the token.
	TokenPairs(ctx context.Context, tokenAddress string) ([]types.DexPair, error)

	// PairPayload returns the raw, unparsed quote payload for one venue.
	PairPayload(ctx context.Context, venue types.Venue) ([]byte, error)
}

const (
	userAgent = "dex-arb/1.0"

	// maxBodyBytes caps how much of a response we are willing to buffer.
	maxBodyBytes = 4 << 20

	tokensBreakerKey = "dexscreener:tokens"
)

// DexscreenerClient is an HTTP client for the Dexscreener public API.
type DexscreenerClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   *circuitbreaker.Registry
	logger     *zap.Logger
}

// ClientConfig holds Dexscreener client configuration.
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second
	Burst     int
	Breakers  *circuitbreaker.Registry // optional
	Logger    *zap.Logger
}

// NewDexscreenerClient creates a new Dexscreener API client.
func NewDexscreenerClient(cfg *ClientConfig) *DexscreenerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &DexscreenerClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:  rate.NewLimiter(limit, burst),
		breakers: cfg.Breakers,
		logger:   cfg.Logger,
	}
}

// TokenPairs fetches all pools for a token across chains and DEXes.
func (c *DexscreenerClient) TokenPairs(ctx context.Context, tokenAddress string) ([]types.DexPair, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(tokenAddress))

	body, err := c.execute(ctx, tokensBreakerKey, func() ([]byte, error) {
		return c.get(ctx, "tokens", endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch token pairs: %w", err)
	}

	var resp types.DexPairsResponse
	err = json.Unmarshal(body, &resp)
	if err != nil {
		return nil, fmt.Errorf("unmarshal token pairs: %w", err)
	}

	c.logger.Debug("fetched-token-pairs",
		zap.String("token", tokenAddress),
		zap.Int("count", len(resp.Pairs)))

	return resp.Pairs, nil
}

// PairPayload fetches the current state of a single pool.
// The body is returned untouched so format problems surface in the normalizer.
func (c *DexscreenerClient) PairPayload(ctx context.Context, venue types.Venue) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/latest/dex/pairs/%s/%s",
		c.baseURL, url.PathEscape(venue.ChainID), url.PathEscape(venue.PairAddress))

	body, err := c.execute(ctx, venue.ID(), func() ([]byte, error) {
		return c.get(ctx, "pairs", endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pair %s: %w", venue.ID(), err)
	}

	return body, nil
}

// execute waits for a rate-limit token before entering the breaker, so a local
// wait that runs out of time never counts against the venue.
func (c *DexscreenerClient) execute(ctx context.Context, key string, fn func() ([]byte, error)) ([]byte, error) {
	err := c.limiter.Wait(ctx)
	if err != nil {
		RateLimitWaitFailuresTotal.Inc()
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	if c.breakers == nil {
		return fn()
	}
	return c.breakers.Execute(key, fn)
}

func (c *DexscreenerClient) get(ctx context.Context, endpoint string, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("dexscreener-request", zap.String("url", requestURL))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	RequestDurationSeconds.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		RequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}
