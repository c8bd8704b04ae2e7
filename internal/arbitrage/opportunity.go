package arbitrage

import (
	"fmt"

	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
)

// Kind distinguishes two-pool spreads from three-pool cycles.
type Kind string

// Opportunity kinds.
const (
	KindPairwise   Kind = "pairwise"
	KindTriangular Kind = "triangular"
)

// Opportunity is a profitable route for one token.
//
// Prices and spreads are USD per token. For triangular cycles BuyPrice is the
// token's USD price on the first leg and SellPrice is what one token comes back
// as after the gross cycle.
type Opportunity struct {
	Kind         Kind
	TokenAddress string
	BuyVenue     string
	SellVenue    string

	BuyPrice          decimal.Decimal
	SellPrice         decimal.Decimal
	GrossSpread       decimal.Decimal
	NetSpread         decimal.Decimal
	MaxExecutableSize decimal.Decimal // token units
	ExpectedProfit    decimal.Decimal // NetSpread x MaxExecutableSize

	// Legs holds the pools in execution order: [buy, sell] for pairwise
	// opportunities and [first, bridge, last] for triangular ones.
	Legs []types.NormalizedQuote
}

// BridgeVenue returns the middle pool of a triangular cycle, or "".
func (o *Opportunity) BridgeVenue() string {
	if o.Kind != KindTriangular || len(o.Legs) != 3 {
		return ""
	}
	return o.Legs[1].VenueID
}

// String returns a human-readable representation of the opportunity.
func (o *Opportunity) String() string {
	route := o.BuyVenue + " -> " + o.SellVenue
	if bridge := o.BridgeVenue(); bridge != "" {
		route = o.BuyVenue + " -> " + bridge + " -> " + o.SellVenue
	}

	return fmt.Sprintf(
		"Opportunity[%s] %s Buy=%s Sell=%s Gross=%s Net=%s Size=%s Est=$%s",
		o.Kind,
		route,
		o.BuyPrice.StringFixed(8),
		o.SellPrice.StringFixed(8),
		o.GrossSpread.StringFixed(8),
		o.NetSpread.StringFixed(8),
		o.MaxExecutableSize.StringFixed(4),
		o.ExpectedProfit.StringFixed(2),
	)
}

// Params are the caller-supplied trade parameters. The detector never
// substitutes defaults for them.
type Params struct {
	Investment decimal.Decimal // USD
	Slippage   decimal.Decimal // price impact per unit of size/liquidity
	Fee        decimal.Decimal // flat fraction charged on every leg
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	one := decimal.NewFromInt(1)

	if !p.Investment.IsPositive() {
		return types.NewInvalidRequest("investment_amount must be positive, got %s", p.Investment)
	}
	if p.Slippage.IsNegative() || p.Slippage.GreaterThanOrEqual(one) {
		return types.NewInvalidRequest("slippage must be in [0, 1), got %s", p.Slippage)
	}
	if p.Fee.IsNegative() || p.Fee.GreaterThanOrEqual(one) {
		return types.NewInvalidRequest("fee_percentage must be in [0, 1), got %s", p.Fee)
	}

	return nil
}
