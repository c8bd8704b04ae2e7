package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the price basis shared by every normalized quote.
const ReferenceCurrency = "USD"

// Venue identifies a single liquidity pool on a DEX.
type Venue struct {
	ChainID     string
	DexID       string
	PairAddress string

	// LiquidityUSD is the discovery-time liquidity, used only to rank venues.
	LiquidityUSD float64
}

// ID returns the stable venue identifier used in responses and tie-breaks.
func (v Venue) ID() string {
	return v.DexID + ":" + v.PairAddress
}

// RawQuote is the unparsed payload a venue returned for one fetch attempt.
type RawQuote struct {
	Venue        Venue
	TokenAddress string
	Payload      []byte
	FetchedAt    time.Time
}

// Quote is a venue's price and available liquidity for a token.
// Liquidity is expressed in token units.
type Quote struct {
	VenueID      string
	TokenAddress string
	Price        decimal.Decimal
	Liquidity    decimal.Decimal
	Timestamp    time.Time
}

// Token is one side of a trading pair.
type Token struct {
	Address string
	Name    string
	Symbol  string
}

// NormalizedQuote is a Quote priced in ReferenceCurrency plus the pool metadata
// the formatter and the triangular detector need.
type NormalizedQuote struct {
	Quote

	Currency string
	Venue    Venue
	PairName string
	PairURL  string

	BaseToken  Token
	QuoteToken Token

	// PriceNative is the base token priced in quote token units.
	PriceNative decimal.Decimal
	// PriceUSD is the base token price in USD as reported by the venue.
	PriceUSD decimal.Decimal

	LiquidityUSD   decimal.Decimal
	LiquidityBase  decimal.Decimal
	LiquidityQuote decimal.Decimal

	// TokenIsBase reports whether Quote.TokenAddress is the base side of the pool.
	TokenIsBase bool
}

// Counterparty returns the side of the pool that is not the quoted token.
func (q *NormalizedQuote) Counterparty() Token {
	if q.TokenIsBase {
		return q.QuoteToken
	}
	return q.BaseToken
}

// Rate returns how many units of the other side one unit of `from` buys at the
// pool's native price. ok is false when `from` is not part of the pool.
func (q *NormalizedQuote) Rate(from string) (rate decimal.Decimal, ok bool) {
	switch {
	case SameAddress(from, q.BaseToken.Address):
		return q.PriceNative, true
	case SameAddress(from, q.QuoteToken.Address):
		if q.PriceNative.IsZero() {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(1).Div(q.PriceNative), true
	default:
		return decimal.Zero, false
	}
}

// LiquidityOf returns the pool's liquidity in units of the given token.
func (q *NormalizedQuote) LiquidityOf(token string) decimal.Decimal {
	switch {
	case SameAddress(token, q.BaseToken.Address):
		return q.LiquidityBase
	case SameAddress(token, q.QuoteToken.Address):
		return q.LiquidityQuote
	default:
		return decimal.Zero
	}
}

// Warning records a per-venue failure that did not abort the request.
type Warning struct {
	Venue   string    `json:"venue"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
