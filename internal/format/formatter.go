// Package format maps detector output to the public response shape.
package format

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mselser95/dex-arb/internal/arbitrage"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
)

// Places is the number of decimal places kept in every numeric field.
const Places = 8

// Pool describes one leg of an opportunity.
type Pool struct {
	Name              string `json:"name"`
	DexID             string `json:"dex_id"`
	ChainID           string `json:"chain_id"`
	PoolAddress       string `json:"pool_address"`
	PoolURL           string `json:"pool_url"`
	PriceUSD          string `json:"price_usd"`
	PriceNative       string `json:"price_native"`
	LiquidityUSD      string `json:"liquidity_usd"`
	LiquidityBase     string `json:"liquidity_base"`
	LiquidityQuote    string `json:"liquidity_quote"`
	BaseTokenAddress  string `json:"base_token_address"`
	QuoteTokenAddress string `json:"quote_token_address"`
}

// Opportunity is the response object for one opportunity. Numbers are decimal
// strings truncated to Places.
type Opportunity struct {
	Kind              string `json:"kind"`
	TokenAddress      string `json:"token_address"`
	BuyVenue          string `json:"buy_venue"`
	SellVenue         string `json:"sell_venue"`
	Pair1             Pool   `json:"pair1"`
	Pair2             Pool   `json:"pair2"`
	Pair3             *Pool  `json:"pair3,omitempty"`
	BuyPrice          string `json:"buy_price"`
	SellPrice         string `json:"sell_price"`
	GrossSpread       string `json:"gross_spread"`
	NetSpread         string `json:"net_spread"`
	MaxExecutableSize string `json:"max_executable_size"`
	ExpectedProfit    string `json:"expected_profit"`
	PriceDiff         string `json:"price_diff"`
	LiquidityDiff     string `json:"liquidity_diff"`
	PotentialProfit   string `json:"potential_profit"`
	NativePriceRatio  string `json:"native_price_ratio"`
	ProfitDisplay     string `json:"profit_display"`
	LiquidityDisplay  string `json:"liquidity_display"`
}

// Opportunities formats a ranked list, preserving order. The result is never nil.
func Opportunities(opps []*arbitrage.Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(opps))
	for _, opp := range opps {
		out = append(out, FormatOpportunity(opp))
	}
	return out
}

// FormatOpportunity formats a single opportunity.
func FormatOpportunity(opp *arbitrage.Opportunity) Opportunity {
	view := Opportunity{
		Kind:              string(opp.Kind),
		TokenAddress:      opp.TokenAddress,
		BuyVenue:          opp.BuyVenue,
		SellVenue:         opp.SellVenue,
		BuyPrice:          Decimal(opp.BuyPrice),
		SellPrice:         Decimal(opp.SellPrice),
		GrossSpread:       Decimal(opp.GrossSpread),
		NetSpread:         Decimal(opp.NetSpread),
		MaxExecutableSize: Decimal(opp.MaxExecutableSize),
		ExpectedProfit:    Decimal(opp.ExpectedProfit),
		PriceDiff:         Decimal(opp.SellPrice.Sub(opp.BuyPrice)),
		ProfitDisplay:     USD(opp.ExpectedProfit),
	}

	if len(opp.Legs) == 0 {
		return view
	}

	first := opp.Legs[0]
	last := opp.Legs[len(opp.Legs)-1]

	view.Pair1 = pool(first)
	if len(opp.Legs) > 1 {
		view.Pair2 = pool(opp.Legs[1])
	}
	if len(opp.Legs) > 2 {
		p3 := pool(opp.Legs[2])
		view.Pair3 = &p3
	}

	view.LiquidityDiff = Decimal(first.LiquidityUSD.Sub(last.LiquidityUSD))
	view.PotentialProfit = Decimal(decimal.Min(first.Liquidity, last.Liquidity).Mul(opp.GrossSpread))
	view.NativePriceRatio = Decimal(nativeRatio(opp, first, last))
	view.LiquidityDisplay = USD(first.LiquidityUSD) + " / " + USD(last.LiquidityUSD)

	return view
}

// nativeRatio compares the pools in their shared counter token when they have
// one, and in USD otherwise.
func nativeRatio(opp *arbitrage.Opportunity, first types.NormalizedQuote, last types.NormalizedQuote) decimal.Decimal {
	if opp.Kind == arbitrage.KindPairwise &&
		types.SameAddress(first.Counterparty().Address, last.Counterparty().Address) {
		buyRate, ok1 := first.Rate(opp.TokenAddress)
		sellRate, ok2 := last.Rate(opp.TokenAddress)
		if ok1 && ok2 && buyRate.IsPositive() {
			return sellRate.Div(buyRate)
		}
	}

	if !opp.BuyPrice.IsPositive() {
		return decimal.Zero
	}
	return opp.SellPrice.Div(opp.BuyPrice)
}

func pool(q types.NormalizedQuote) Pool {
	return Pool{
		Name:              q.PairName,
		DexID:             q.Venue.DexID,
		ChainID:           q.Venue.ChainID,
		PoolAddress:       q.Venue.PairAddress,
		PoolURL:           q.PairURL,
		PriceUSD:          Decimal(q.PriceUSD),
		PriceNative:       Decimal(q.PriceNative),
		LiquidityUSD:      Decimal(q.LiquidityUSD),
		LiquidityBase:     Decimal(q.LiquidityBase),
		LiquidityQuote:    Decimal(q.LiquidityQuote),
		BaseTokenAddress:  q.BaseToken.Address,
		QuoteTokenAddress: q.QuoteToken.Address,
	}
}

// Decimal truncates (never rounds) to Places and renders with a fixed scale.
func Decimal(d decimal.Decimal) string {
	return d.Truncate(Places).StringFixed(Places)
}

// USD renders a dollar amount with thousands separators and two decimals.
func USD(d decimal.Decimal) string {
	cents := d.Truncate(2)
	sign := ""
	if cents.IsNegative() {
		sign = "-"
		cents = cents.Abs()
	}

	whole := cents.Truncate(0)
	frac := cents.Sub(whole).Shift(2).IntPart()

	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(whole.IntPart()), frac)
}
