package testutil

import (
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
)

// TestChain is the chain every fixture pool lives on.
const TestChain = "ethereum"

// Well-known mainnet tokens used across tests.
//
//nolint:gochecknoglobals // test fixtures
var (
	TokenWETH = types.DexToken{Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Name: "Wrapped Ether", Symbol: "WETH"}
	TokenUSDC = types.DexToken{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Name: "USD Coin", Symbol: "USDC"}
	TokenUSDT = types.DexToken{Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Name: "Tether USD", Symbol: "USDT"}
	TokenDAI  = types.DexToken{Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Name: "Dai Stablecoin", Symbol: "DAI"}
)

// PairSpec describes a fixture pool. Prices are decimal strings as on the wire.
type PairSpec struct {
	DexID          string
	PairAddress    string
	Base           types.DexToken
	Quote          types.DexToken
	PriceNative    string
	PriceUSD       string
	LiquidityUSD   float64
	LiquidityBase  float64
	LiquidityQuote float64
}

// NewDexPair builds a Dexscreener pair from a spec.
func NewDexPair(spec PairSpec) types.DexPair {
	return types.DexPair{
		ChainID:     TestChain,
		DexID:       spec.DexID,
		URL:         "https://dexscreener.com/" + TestChain + "/" + spec.PairAddress,
		PairAddress: spec.PairAddress,
		BaseToken:   spec.Base,
		QuoteToken:  spec.Quote,
		PriceNative: spec.PriceNative,
		PriceUSD:    spec.PriceUSD,
		Liquidity: &types.DexLiquidity{
			USD:   decimal.NewFromFloat(spec.LiquidityUSD),
			Base:  decimal.NewFromFloat(spec.LiquidityBase),
			Quote: decimal.NewFromFloat(spec.LiquidityQuote),
		},
	}
}

// NewUSDCPair is a WETH/USDC pool where WETH trades at priceUSD.
func NewUSDCPair(dexID string, pairAddress string, priceUSD string, liquidityWETH float64) types.DexPair {
	price := decimal.RequireFromString(priceUSD)
	quoteSide := price.Mul(decimal.NewFromFloat(liquidityWETH))

	return NewDexPair(PairSpec{
		DexID:          dexID,
		PairAddress:    pairAddress,
		Base:           TokenWETH,
		Quote:          TokenUSDC,
		PriceNative:    priceUSD,
		PriceUSD:       priceUSD,
		LiquidityUSD:   quoteSide.Mul(decimal.NewFromInt(2)).InexactFloat64(),
		LiquidityBase:  liquidityWETH,
		LiquidityQuote: quoteSide.InexactFloat64(),
	})
}

