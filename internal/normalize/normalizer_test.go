package normalize

import (
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/internal/testutil"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawQuote(t *testing.T, token string, pair types.DexPair) types.RawQuote {
	t.Helper()

	payload, err := json.Marshal(types.DexPairsResponse{SchemaVersion: "1.0.0", Pairs: []types.DexPair{pair}})
	require.NoError(t, err)

	return types.RawQuote{
		Venue:        pair.VenueOf(),
		TokenAddress: token,
		Payload:      payload,
		FetchedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNormalize_BaseSide(t *testing.T) {
	pair := testutil.NewUSDCPair("uniswap", "0xpool", "2000.5", 100)

	q, err := Normalize(rawQuote(t, testutil.TokenWETH.Address, pair))
	require.NoError(t, err)

	assert.Equal(t, "uniswap:0xpool", q.VenueID)
	assert.Equal(t, types.ReferenceCurrency, q.Currency)
	assert.True(t, q.TokenIsBase)
	assert.Equal(t, "2000.5", q.Price.String())
	assert.Equal(t, "100", q.Liquidity.String())
	assert.Equal(t, "WETH/USDC", q.PairName)
	assert.Equal(t, testutil.TokenUSDC.Address, q.Counterparty().Address)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), q.Timestamp)
}

func TestNormalize_QuoteSide(t *testing.T) {
	// DAI/WETH pool: 1 DAI = 0.0005 WETH, DAI at $1.00, so WETH = $2000.
	pair := testutil.NewDexPair(testutil.PairSpec{
		DexID:          "uniswap",
		PairAddress:    "0xdai-weth",
		Base:           testutil.TokenDAI,
		Quote:          testutil.TokenWETH,
		PriceNative:    "0.0005",
		PriceUSD:       "1.00",
		LiquidityUSD:   400_000,
		LiquidityBase:  200_000,
		LiquidityQuote: 100,
	})

	// Lowercase input still matches the checksummed pool token.
	q, err := Normalize(rawQuote(t, "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", pair))
	require.NoError(t, err)

	assert.False(t, q.TokenIsBase)
	assert.Equal(t, "2000", q.Price.String())
	assert.Equal(t, "100", q.Liquidity.String())
	assert.Equal(t, testutil.TokenWETH.Address, q.TokenAddress)
	assert.Equal(t, testutil.TokenDAI.Address, q.Counterparty().Address)
}

func TestNormalize_PayloadShapes(t *testing.T) {
	pair := testutil.NewUSDCPair("uniswap", "0xpool", "2000", 100)

	single, err := json.Marshal(map[string]any{"pair": pair})
	require.NoError(t, err)
	bare, err := json.Marshal(pair)
	require.NoError(t, err)
	other := testutil.NewUSDCPair("uniswap", "0xother", "1", 1)
	many, err := json.Marshal(types.DexPairsResponse{Pairs: []types.DexPair{other, pair}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "single-pair-object", payload: single},
		{name: "bare-pair", payload: bare},
		{name: "matching-pair-in-list", payload: many},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Normalize(types.RawQuote{
				Venue:        pair.VenueOf(),
				TokenAddress: testutil.TokenWETH.Address,
				Payload:      tt.payload,
			})
			require.NoError(t, err)
			assert.Equal(t, "2000", q.Price.String())
			assert.Equal(t, "uniswap:0xpool", q.VenueID)
		})
	}
}

func TestNormalize_UnsupportedFormat(t *testing.T) {
	valid := testutil.NewUSDCPair("uniswap", "0xpool", "2000", 100)

	noLiquidity := valid
	noLiquidity.Liquidity = nil

	noPriceUSD := valid
	noPriceUSD.PriceUSD = ""

	badPrice := valid
	badPrice.PriceNative = "abc"

	zeroPrice := valid
	zeroPrice.PriceNative = "0"

	zeroLiquidity := testutil.NewUSDCPair("uniswap", "0xpool", "2000", 0)

	tests := []struct {
		name    string
		token   string
		payload func(t *testing.T) []byte
	}{
		{
			name:  "not-json",
			token: testutil.TokenWETH.Address,
			payload: func(t *testing.T) []byte {
				return []byte("<html>rate limited</html>")
			},
		},
		{
			name:  "empty-payload",
			token: testutil.TokenWETH.Address,
			payload: func(t *testing.T) []byte {
				return nil
			},
		},
		{
			name:  "empty-pairs",
			token: testutil.TokenWETH.Address,
			payload: func(t *testing.T) []byte {
				return []byte(`{"schemaVersion":"1.0.0","pairs":[]}`)
			},
		},
		{name: "missing-liquidity", token: testutil.TokenWETH.Address, payload: payloadOf(noLiquidity)},
		{name: "missing-price-usd", token: testutil.TokenWETH.Address, payload: payloadOf(noPriceUSD)},
		{name: "unparseable-price", token: testutil.TokenWETH.Address, payload: payloadOf(badPrice)},
		{name: "zero-price", token: testutil.TokenWETH.Address, payload: payloadOf(zeroPrice)},
		{name: "zero-liquidity", token: testutil.TokenWETH.Address, payload: payloadOf(zeroLiquidity)},
		{name: "token-not-in-pair", token: testutil.TokenDAI.Address, payload: payloadOf(valid)},
		{name: "missing-token", token: "", payload: payloadOf(valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(types.RawQuote{
				Venue:        valid.VenueOf(),
				TokenAddress: tt.token,
				Payload:      tt.payload(t),
			})
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrUnsupportedVenueFormat))

			var engineErr *types.EngineError
			require.ErrorAs(t, err, &engineErr)
			assert.Equal(t, "uniswap:0xpool", engineErr.Venue)
		})
	}
}

func TestNormalizePool(t *testing.T) {
	pair := testutil.NewDexPair(testutil.PairSpec{
		DexID:          "curve",
		PairAddress:    "0xusdc-dai",
		Base:           testutil.TokenUSDC,
		Quote:          testutil.TokenDAI,
		PriceNative:    "1.001",
		PriceUSD:       "1.0005",
		LiquidityUSD:   2_000_000,
		LiquidityBase:  1_000_000,
		LiquidityQuote: 1_000_000,
	})

	q, err := NormalizePool(rawQuote(t, "", pair))
	require.NoError(t, err)

	assert.True(t, q.TokenIsBase)
	assert.Equal(t, testutil.TokenUSDC.Address, q.TokenAddress)

	rate, ok := q.Rate(testutil.TokenDAI.Address)
	require.True(t, ok)
	assert.True(t, rate.LessThan(q.PriceNative))
}

func TestNormalize_Pure(t *testing.T) {
	raw := rawQuote(t, testutil.TokenWETH.Address, testutil.NewUSDCPair("uniswap", "0xpool", "2000", 100))
	before := string(raw.Payload)

	first, err := Normalize(raw)
	require.NoError(t, err)
	second, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, before, string(raw.Payload))
	assert.True(t, first.Price.Equal(second.Price))
	assert.True(t, first.Liquidity.Equal(second.Liquidity))
}

func payloadOf(pair types.DexPair) func(t *testing.T) []byte {
	return func(t *testing.T) []byte {
		t.Helper()
		b, err := json.Marshal(types.DexPairsResponse{Pairs: []types.DexPair{pair}})
		require.NoError(t, err)
		return b
	}
}
