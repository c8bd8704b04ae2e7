// Package normalize turns raw Dexscreener pair payloads into quotes priced in
// the reference currency. Everything here is pure.
package normalize

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
)

// Normalize converts a raw quote for raw.TokenAddress into a NormalizedQuote.
// The token may sit on either side of the pool. Any payload that does not yield
// a positive price and liquidity fails with UnsupportedVenueFormat.
func Normalize(raw types.RawQuote) (types.NormalizedQuote, error) {
	if raw.TokenAddress == "" {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(raw.Venue.ID(), "token address missing", nil)
	}
	return normalize(raw, raw.TokenAddress)
}

// NormalizePool converts a raw payload that is not tied to a requested token,
// quoting the pool's base token. Bridge pools of triangular cycles use this.
func NormalizePool(raw types.RawQuote) (types.NormalizedQuote, error) {
	return normalize(raw, "")
}

func normalize(raw types.RawQuote, token string) (types.NormalizedQuote, error) {
	venueID := raw.Venue.ID()

	pair, err := decodePair(raw.Payload, raw.Venue.PairAddress)
	if err != nil {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID, "unparseable payload", err)
	}

	if token == "" {
		token = pair.BaseToken.Address
	}

	priceNative, err := positiveDecimal("priceNative", pair.PriceNative)
	if err != nil {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID, "invalid price", err)
	}
	priceUSD, err := positiveDecimal("priceUsd", pair.PriceUSD)
	if err != nil {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID, "invalid price", err)
	}
	if pair.Liquidity == nil {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID, "liquidity missing", nil)
	}

	var (
		price       decimal.Decimal
		liquidity   decimal.Decimal
		tokenIsBase bool
	)
	switch {
	case types.SameAddress(token, pair.BaseToken.Address):
		tokenIsBase = true
		price = priceUSD
		liquidity = pair.Liquidity.Base
	case types.SameAddress(token, pair.QuoteToken.Address):
		// priceUsd is the base token's price; priceNative is base in quote units.
		price = priceUSD.Div(priceNative)
		liquidity = pair.Liquidity.Quote
	default:
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID,
			"token not part of pair", fmt.Errorf("token %s, pair %s/%s", token, pair.BaseToken.Address, pair.QuoteToken.Address))
	}

	if !price.IsPositive() {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID, "invalid price",
			fmt.Errorf("derived price %s", price))
	}
	if !liquidity.IsPositive() {
		return types.NormalizedQuote{}, types.NewUnsupportedVenueFormat(venueID, "invalid liquidity",
			fmt.Errorf("token liquidity %s", liquidity))
	}

	venue := raw.Venue
	if venue.ChainID == "" {
		venue.ChainID = pair.ChainID
	}
	if venue.DexID == "" {
		venue.DexID = pair.DexID
	}
	if venue.PairAddress == "" {
		venue.PairAddress = pair.PairAddress
	}
	venue.LiquidityUSD = pair.Liquidity.USD.InexactFloat64()

	return types.NormalizedQuote{
		Quote: types.Quote{
			VenueID:      venue.ID(),
			TokenAddress: types.CanonicalAddress(token),
			Price:        price,
			Liquidity:    liquidity,
			Timestamp:    raw.FetchedAt,
		},
		Currency:       types.ReferenceCurrency,
		Venue:          venue,
		PairName:       pair.BaseToken.Symbol + "/" + pair.QuoteToken.Symbol,
		PairURL:        pair.URL,
		BaseToken:      toToken(pair.BaseToken),
		QuoteToken:     toToken(pair.QuoteToken),
		PriceNative:    priceNative,
		PriceUSD:       priceUSD,
		LiquidityUSD:   pair.Liquidity.USD,
		LiquidityBase:  pair.Liquidity.Base,
		LiquidityQuote: pair.Liquidity.Quote,
		TokenIsBase:    tokenIsBase,
	}, nil
}

// decodePair accepts {"pair":{...}}, {"pairs":[...]} or a bare pair object.
// When several pairs are present the one matching pairAddress wins.
func decodePair(payload []byte, pairAddress string) (*types.DexPair, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	var resp types.DexPairsResponse
	err := json.Unmarshal(payload, &resp)
	if err != nil {
		return nil, fmt.Errorf("unmarshal pair payload: %w", err)
	}

	if resp.Pair != nil {
		return resp.Pair, nil
	}

	if len(resp.Pairs) > 0 {
		for i := range resp.Pairs {
			if types.SameAddress(resp.Pairs[i].PairAddress, pairAddress) {
				return &resp.Pairs[i], nil
			}
		}
		if len(resp.Pairs) == 1 {
			return &resp.Pairs[0], nil
		}
		return nil, fmt.Errorf("pair %s not in payload of %d pairs", pairAddress, len(resp.Pairs))
	}

	var bare types.DexPair
	err = json.Unmarshal(payload, &bare)
	if err != nil {
		return nil, fmt.Errorf("unmarshal bare pair: %w", err)
	}
	if bare.PairAddress == "" && bare.PriceNative == "" {
		return nil, fmt.Errorf("no pair in payload")
	}

	return &bare, nil
}

func positiveDecimal(field string, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, fmt.Errorf("%s missing", field)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", field, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive, got %s", field, d)
	}

	return d, nil
}

func toToken(t types.DexToken) types.Token {
	return types.Token{
		Address: types.CanonicalAddress(t.Address),
		Name:    t.Name,
		Symbol:  t.Symbol,
	}
}
