package types

import "github.com/shopspring/decimal"

// DexPair is a pool as returned by the Dexscreener API.
// Prices are strings on the wire; liquidity fields are numbers.
type DexPair struct {
	ChainID       string        `json:"chainId"`
	DexID         string        `json:"dexId"`
	URL           string        `json:"url"`
	PairAddress   string        `json:"pairAddress"`
	Labels        []string      `json:"labels,omitempty"`
	BaseToken     DexToken      `json:"baseToken"`
	QuoteToken    DexToken      `json:"quoteToken"`
	PriceNative   string        `json:"priceNative"`
	PriceUSD      string        `json:"priceUsd,omitempty"`
	Liquidity     *DexLiquidity `json:"liquidity,omitempty"`
	FDV           float64       `json:"fdv,omitempty"`
	PairCreatedAt int64         `json:"pairCreatedAt,omitempty"`
}

// DexToken is one side of a Dexscreener pair.
type DexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DexLiquidity holds pool depth in USD and in each side's token units.
type DexLiquidity struct {
	USD   decimal.Decimal `json:"usd"`
	Base  decimal.Decimal `json:"base"`
	Quote decimal.Decimal `json:"quote"`
}

// DexPairsResponse wraps the /latest/dex endpoints.
// Token lookups fill Pairs; pair lookups fill either Pair or Pairs.
type DexPairsResponse struct {
	SchemaVersion string    `json:"schemaVersion"`
	Pairs         []DexPair `json:"pairs"`
	Pair          *DexPair  `json:"pair,omitempty"`
}

// VenueOf builds the venue identity for a pair.
func (p *DexPair) VenueOf() Venue {
	v := Venue{
		ChainID:     p.ChainID,
		DexID:       p.DexID,
		PairAddress: p.PairAddress,
	}
	if p.Liquidity != nil {
		v.LiquidityUSD = p.Liquidity.USD.InexactFloat64()
	}
	return v
}
