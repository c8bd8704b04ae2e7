package arbitrage

import (
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
)

const testToken = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

// CreateTestQuote creates a USD-priced quote for a single fixture token.
// This is a test helper kept here to avoid import cycles with testutil.
func CreateTestQuote(venueID string, price string, liquidity string) types.NormalizedQuote {
	p := decimal.RequireFromString(price)
	l := decimal.RequireFromString(liquidity)

	return types.NormalizedQuote{
		Quote: types.Quote{
			VenueID:      venueID,
			TokenAddress: testToken,
			Price:        p,
			Liquidity:    l,
		},
		Currency:       types.ReferenceCurrency,
		Venue:          types.Venue{ChainID: "ethereum", DexID: venueID},
		PairName:       "WETH/USDC",
		BaseToken:      types.Token{Address: testToken, Symbol: "WETH"},
		QuoteToken:     types.Token{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Symbol: "USDC"},
		PriceNative:    p,
		PriceUSD:       p,
		LiquidityUSD:   p.Mul(l).Mul(decimal.NewFromInt(2)),
		LiquidityBase:  l,
		LiquidityQuote: p.Mul(l),
		TokenIsBase:    true,
	}
}

// CreateTestOpportunity creates the canonical two-venue opportunity:
// buy at 1.00 on venue A, sell at 1.02 on venue B.
func CreateTestOpportunity() *Opportunity {
	opps := Pairwise([]types.NormalizedQuote{
		CreateTestQuote("A", "1.00", "100000"),
		CreateTestQuote("B", "1.02", "100000"),
	}, Params{
		Investment: decimal.NewFromInt(10000),
		Slippage:   decimal.RequireFromString("0.0005"),
		Fee:        decimal.RequireFromString("0.0003"),
	})

	return opps[0]
}
