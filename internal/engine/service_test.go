package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/internal/marketdata"
	"github.com/mselser95/dex-arb/internal/testutil"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []string
}

func (w *recordingWriter) Write(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, message)
}

func (w *recordingWriter) Messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.messages...)
}

type failingDiscovery struct{}

func (failingDiscovery) Venues(context.Context, string, marketdata.VenueFilter) ([]types.Venue, error) {
	return nil, errors.New("upstream unavailable")
}

func (failingDiscovery) BridgeVenues(context.Context, string, marketdata.VenueFilter, int) ([]types.Venue, error) {
	return nil, errors.New("upstream unavailable")
}

type staticDiscovery []types.Venue

func (d staticDiscovery) Venues(context.Context, string, marketdata.VenueFilter) ([]types.Venue, error) {
	return d, nil
}

func (staticDiscovery) BridgeVenues(context.Context, string, marketdata.VenueFilter, int) ([]types.Venue, error) {
	return nil, nil
}

func newTestService(t *testing.T, api *testutil.MockDexscreenerAPI, logs LogWriter, minLiquidity float64) *Service {
	t.Helper()

	return newTestServiceWithDetector(t, api, logs, minLiquidity,
		arbitrage.New(arbitrage.Config{Triangular: true, Logger: zap.NewNop()}))
}

func newTestServiceWithDetector(
	t *testing.T,
	api *testutil.MockDexscreenerAPI,
	logs LogWriter,
	minLiquidity float64,
	detector *arbitrage.Detector,
) *Service {
	t.Helper()

	logger := zap.NewNop()
	client := marketdata.NewDexscreenerClient(&marketdata.ClientConfig{
		BaseURL: api.URL,
		Timeout: 2 * time.Second,
		Logger:  logger,
	})

	return New(&Config{
		Discovery: marketdata.NewDiscovery(&marketdata.DiscoveryConfig{
			Client:    client,
			MaxVenues: 10,
			Logger:    logger,
		}),
		Fetcher: marketdata.NewFetcher(&marketdata.FetcherConfig{
			Client:      client,
			Deadline:    time.Second,
			Concurrency: 4,
			Logger:      logger,
		}),
		Detector:        detector,
		Logs:            logs,
		MinLiquidityUSD: minLiquidity,
		BridgeTokens:    3,
		Logger:          logger,
	})
}

func defaultParams() arbitrage.Params {
	return arbitrage.Params{
		Investment: decimal.NewFromInt(1000),
		Slippage:   decimal.RequireFromString("0.005"),
		Fee:        decimal.RequireFromString("0.003"),
	}
}

func TestService_Scan_TwoVenues(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(
		testutil.NewUSDCPair("uniswap", "0xcheap", "2000", 500),
		testutil.NewUSDCPair("sushiswap", "0xrich", "2040", 500),
	)

	logs := &recordingWriter{}
	svc := newTestService(t, api, logs, 0)

	result, err := svc.Scan(context.Background(), Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ScanID)
	assert.Equal(t, 2, result.VenuesQueried)
	assert.Equal(t, 2, result.QuotesUsed)
	assert.Empty(t, result.Warnings)
	require.Len(t, result.Opportunities, 1)

	opp := result.Opportunities[0]
	assert.Equal(t, "uniswap:0xcheap", opp.BuyVenue)
	assert.Equal(t, "sushiswap:0xrich", opp.SellVenue)
	assert.True(t, opp.NetSpread.IsPositive())
	assert.True(t, opp.ExpectedProfit.IsPositive())

	messages := logs.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "opportunities=1")
	assert.Contains(t, messages[0], "best=uniswap:0xcheap->sushiswap:0xrich")
}

func TestService_Scan_InsufficientQuotes(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(testutil.NewUSDCPair("uniswap", "0xonly", "2000", 500))

	logs := &recordingWriter{}
	svc := newTestService(t, api, logs, 0)

	result, err := svc.Scan(context.Background(), Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.CodeInsufficientQuotes, types.CodeOf(err))
	assert.True(t, errors.Is(err, types.ErrInsufficientQuotes))

	messages := logs.Messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "INSUFFICIENT_QUOTES")
}

func TestService_Scan_PartialFailure(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(
		testutil.NewUSDCPair("uniswap", "0xa", "2000", 500),
		testutil.NewUSDCPair("sushiswap", "0xb", "2040", 400),
		testutil.NewUSDCPair("curve", "0xc", "2020", 300),
		testutil.NewUSDCPair("balancer", "0xd", "2010", 200),
	)
	api.FailPair("0xb", http.StatusBadGateway)
	api.SetPairPayload("0xc", []byte(`<html>rate limited</html>`))

	logs := &recordingWriter{}
	svc := newTestService(t, api, logs, 0)

	result, err := svc.Scan(context.Background(), Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.VenuesQueried)
	assert.Equal(t, 2, result.QuotesUsed)
	require.Len(t, result.Warnings, 2)

	codes := map[string]types.ErrorCode{}
	for _, w := range result.Warnings {
		codes[w.Venue] = w.Code
	}
	assert.Equal(t, types.CodeVenueFetchFailure, codes["sushiswap:0xb"])
	assert.Equal(t, types.CodeUnsupportedVenueFormat, codes["curve:0xc"])

	for _, opp := range result.Opportunities {
		assert.NotEqual(t, "sushiswap:0xb", opp.SellVenue)
		assert.NotEqual(t, "curve:0xc", opp.SellVenue)
	}

	// One summary line plus one per warning.
	assert.Len(t, logs.Messages(), 3)
}

func TestService_Scan_LowLiquidity(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(
		testutil.NewUSDCPair("uniswap", "0xa", "2000", 500),
		testutil.NewUSDCPair("sushiswap", "0xb", "2040", 500),
		testutil.NewUSDCPair("dusty", "0xdust", "2500", 0.5),
	)

	svc := newTestService(t, api, nil, 10000)

	result, err := svc.Scan(context.Background(), Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
	})
	require.NoError(t, err)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "dusty:0xdust", result.Warnings[0].Venue)
	assert.Equal(t, types.CodeLowLiquidity, result.Warnings[0].Code)
	assert.Equal(t, 2, result.QuotesUsed)
}

func TestService_Scan_InvalidRequest(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	svc := newTestService(t, api, nil, 0)

	tests := []struct {
		name string
		req  Request
	}{
		{
			name: "missing-token",
			req:  Request{Params: defaultParams()},
		},
		{
			name: "malformed-token",
			req:  Request{TokenAddress: "not-a-token", Params: defaultParams()},
		},
		{
			name: "zero-investment",
			req: Request{
				TokenAddress: testutil.TokenWETH.Address,
				Params: arbitrage.Params{
					Investment: decimal.Zero,
					Slippage:   decimal.RequireFromString("0.005"),
					Fee:        decimal.RequireFromString("0.003"),
				},
			},
		},
		{
			name: "fee-out-of-range",
			req: Request{
				TokenAddress: testutil.TokenWETH.Address,
				Params: arbitrage.Params{
					Investment: decimal.NewFromInt(1000),
					Slippage:   decimal.RequireFromString("0.005"),
					Fee:        decimal.NewFromInt(1),
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Scan(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, types.CodeInvalidRequest, types.CodeOf(err))
		})
	}

	assert.Zero(t, api.TokenRequests(), "invalid requests must not reach upstream")
}

func TestService_Scan_DiscoveryFailure(t *testing.T) {
	svc := New(&Config{
		Discovery: failingDiscovery{},
		Detector:  arbitrage.New(arbitrage.Config{Logger: zap.NewNop()}),
		Logger:    zap.NewNop(),
	})

	_, err := svc.Scan(context.Background(), Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
	})
	require.Error(t, err)
	assert.Equal(t, types.CodeInternalError, types.CodeOf(err))
}

func TestService_Scan_ExpiredContext(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	cheap := testutil.NewUSDCPair("uniswap", "0xcheap", "2000", 500)
	rich := testutil.NewUSDCPair("sushiswap", "0xrich", "2040", 500)
	api.AddPairs(cheap, rich)

	logger := zap.NewNop()
	client := marketdata.NewDexscreenerClient(&marketdata.ClientConfig{
		BaseURL: api.URL,
		Logger:  logger,
	})
	svc := New(&Config{
		Discovery: staticDiscovery{cheap.VenueOf(), rich.VenueOf()},
		Fetcher: marketdata.NewFetcher(&marketdata.FetcherConfig{
			Client:      client,
			Deadline:    time.Second,
			Concurrency: 2,
			Logger:      logger,
		}),
		Detector: arbitrage.New(arbitrage.Config{Logger: logger}),
		Logger:   logger,
	})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result, err := svc.Scan(ctx, Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, types.CodeInsufficientQuotes, types.CodeOf(err))
	assert.Zero(t, api.PairRequests())
}

func TestService_Scan_TriangularDisabledInDetector(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(
		testutil.NewUSDCPair("uniswap", "0xcheap", "2000", 500),
		testutil.NewUSDCPair("sushiswap", "0xrich", "2040", 500),
	)

	svc := newTestServiceWithDetector(t, api, nil, 0,
		arbitrage.New(arbitrage.Config{Triangular: false, Logger: zap.NewNop()}))

	result, err := svc.Scan(context.Background(), Request{
		TokenAddress: testutil.TokenWETH.Address,
		Params:       defaultParams(),
		Triangular:   true,
	})
	require.NoError(t, err)
	require.Len(t, result.Opportunities, 1)
	assert.Equal(t, arbitrage.KindPairwise, result.Opportunities[0].Kind)
	assert.Equal(t, int64(1), api.TokenRequests(), "bridge discovery must be skipped")
	assert.Equal(t, int64(2), api.PairRequests(), "only the token's own pools are fetched")
}

func TestService_Scan_Triangular(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(
		testutil.NewUSDCPair("uniswap", "0xweth-usdc", "2000", 1000),
		testutil.NewDexPair(testutil.PairSpec{
			DexID:          "sushiswap",
			PairAddress:    "0xweth-dai",
			Base:           testutil.TokenWETH,
			Quote:          testutil.TokenDAI,
			PriceNative:    "2000",
			PriceUSD:       "2000",
			LiquidityUSD:   4000000,
			LiquidityBase:  1000,
			LiquidityQuote: 2000000,
		}),
		testutil.NewDexPair(testutil.PairSpec{
			DexID:          "curve",
			PairAddress:    "0xusdc-dai",
			Base:           testutil.TokenUSDC,
			Quote:          testutil.TokenDAI,
			PriceNative:    "1.01",
			PriceUSD:       "1.01",
			LiquidityUSD:   20000000,
			LiquidityBase:  10000000,
			LiquidityQuote: 10100000,
		}),
	)

	svc := newTestService(t, api, nil, 0)

	tests := []struct {
		name       string
		triangular bool
		wantKinds  []arbitrage.Kind
	}{
		{
			name:       "enabled",
			triangular: true,
			wantKinds:  []arbitrage.Kind{arbitrage.KindTriangular},
		},
		{
			name:       "disabled",
			triangular: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Scan(context.Background(), Request{
				TokenAddress: testutil.TokenWETH.Address,
				Params: arbitrage.Params{
					Investment: decimal.NewFromInt(10000),
					Slippage:   decimal.Zero,
					Fee:        decimal.Zero,
				},
				Triangular: tt.triangular,
			})
			require.NoError(t, err)

			kinds := make([]arbitrage.Kind, 0, len(result.Opportunities))
			for _, opp := range result.Opportunities {
				kinds = append(kinds, opp.Kind)
			}
			if len(tt.wantKinds) == 0 {
				assert.Empty(t, kinds)
				return
			}
			assert.Equal(t, tt.wantKinds, kinds)
			assert.Equal(t, "curve:0xusdc-dai", result.Opportunities[0].BridgeVenue())
		})
	}
}

func TestService_Scan_Idempotent(t *testing.T) {
	api := testutil.NewMockDexscreenerAPI()
	defer api.Close()

	api.AddPairs(
		testutil.NewUSDCPair("uniswap", "0xa", "2000", 500),
		testutil.NewUSDCPair("sushiswap", "0xb", "2040", 400),
		testutil.NewUSDCPair("curve", "0xc", "2030", 300),
	)

	svc := newTestService(t, api, nil, 0)
	req := Request{TokenAddress: testutil.TokenWETH.Address, Params: defaultParams()}

	first, err := svc.Scan(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Scan(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, len(first.Opportunities), len(second.Opportunities))
	for i := range first.Opportunities {
		assert.Equal(t, first.Opportunities[i].String(), second.Opportunities[i].String())
	}
	assert.NotEqual(t, first.ScanID, second.ScanID)
}

func TestSummary(t *testing.T) {
	r := &Result{
		ScanID:        "0123456789abcdef",
		TokenAddress:  strings.ToLower(testutil.TokenWETH.Address),
		VenuesQueried: 3,
		QuotesUsed:    2,
	}

	assert.Equal(t,
		"scan 01234567 token=0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2 venues=3 quotes=2 opportunities=0 warnings=0",
		summary(r))
}
