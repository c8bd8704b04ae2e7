package arbitrage

import (
	"sort"
	"time"

	"github.com/mselser95/dex-arb/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Rejection reasons recorded in OpportunitiesRejectedTotal.
const (
	rejectNoSpread       = "no-spread"
	rejectNonPositiveNet = "non-positive-net"
	rejectZeroSize       = "zero-size"
	rejectMismatch       = "token-mismatch"
	rejectNoRate         = "no-rate"
)

//nolint:gochecknoglobals // decimal constants
var (
	one         = decimal.NewFromInt(1)
	basisPoints = decimal.NewFromInt(10000)
)

// Detector finds and ranks arbitrage opportunities among normalized quotes.
// Detection itself is deterministic: identical quotes and parameters always
// produce the same ordered result.
type Detector struct {
	triangular bool
	logger     *zap.Logger
}

// Config holds detector configuration.
type Config struct {
	Triangular bool
	Logger     *zap.Logger
}

// New creates a new arbitrage detector.
func New(cfg Config) *Detector {
	return &Detector{
		triangular: cfg.Triangular,
		logger:     cfg.Logger,
	}
}

// Triangular reports whether triangular cycles are searched.
func (d *Detector) Triangular() bool {
	return d.triangular
}

// Detect returns every qualifying opportunity ranked by net spread. bridges
// are pools between the token's counter tokens; they are only used for
// triangular cycles and may be nil.
func (d *Detector) Detect(quotes []types.NormalizedQuote, bridges []types.NormalizedQuote, params Params) []*Opportunity {
	start := time.Now()

	opps := Pairwise(quotes, params)
	if d.triangular && len(bridges) > 0 {
		opps = append(opps, Triangular(quotes, bridges, params)...)
	}
	Rank(opps)

	DetectionDurationSeconds.Observe(time.Since(start).Seconds())

	for _, opp := range opps {
		OpportunitiesDetectedTotal.WithLabelValues(string(opp.Kind)).Inc()
		ExpectedProfitUSD.Observe(opp.ExpectedProfit.InexactFloat64())
		if opp.BuyPrice.IsPositive() {
			NetSpreadBPS.Observe(opp.NetSpread.Div(opp.BuyPrice).Mul(basisPoints).InexactFloat64())
		}
	}

	d.logger.Debug("detection-complete",
		zap.Int("quotes", len(quotes)),
		zap.Int("bridges", len(bridges)),
		zap.Int("opportunities", len(opps)),
		zap.Duration("elapsed", time.Since(start)))

	return opps
}

// Pairwise evaluates every unordered pair of quotes. The cheaper venue is the
// buy side; equal prices never qualify.
func Pairwise(quotes []types.NormalizedQuote, params Params) []*Opportunity {
	opps := make([]*Opportunity, 0)

	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			a, b := quotes[i], quotes[j]

			if a.VenueID == b.VenueID {
				continue
			}
			if !types.SameAddress(a.TokenAddress, b.TokenAddress) || a.Currency != b.Currency {
				OpportunitiesRejectedTotal.WithLabelValues(rejectMismatch).Inc()
				continue
			}

			opp, reason := evaluatePair(a, b, params)
			if opp == nil {
				OpportunitiesRejectedTotal.WithLabelValues(reason).Inc()
				continue
			}
			opps = append(opps, opp)
		}
	}

	return opps
}

func evaluatePair(a types.NormalizedQuote, b types.NormalizedQuote, params Params) (*Opportunity, string) {
	cmp := a.Price.Cmp(b.Price)
	if cmp == 0 {
		return nil, rejectNoSpread
	}

	buy, sell := a, b
	if cmp > 0 {
		buy, sell = b, a
	}

	size := decimal.Min(params.Investment.Div(buy.Price), buy.Liquidity, sell.Liquidity)
	if !size.IsPositive() {
		return nil, rejectZeroSize
	}

	impactBuy := params.Slippage.Mul(size).Div(buy.Liquidity)
	impactSell := params.Slippage.Mul(size).Div(sell.Liquidity)

	effBuy := buy.Price.Mul(one.Add(impactBuy))
	effSell := sell.Price.Mul(one.Sub(impactSell))

	net := effSell.Mul(one.Sub(params.Fee)).Sub(effBuy.Mul(one.Add(params.Fee)))
	if !net.IsPositive() {
		return nil, rejectNonPositiveNet
	}

	return &Opportunity{
		Kind:              KindPairwise,
		TokenAddress:      buy.TokenAddress,
		BuyVenue:          buy.VenueID,
		SellVenue:         sell.VenueID,
		BuyPrice:          buy.Price,
		SellPrice:         sell.Price,
		GrossSpread:       sell.Price.Sub(buy.Price),
		NetSpread:         net,
		MaxExecutableSize: size,
		ExpectedProfit:    net.Mul(size),
		Legs:              []types.NormalizedQuote{buy, sell},
	}, ""
}

// Triangular evaluates cycles token -> A -> B -> token, where the first and
// last legs are token pools and the middle leg is a bridge pool trading A
// against B. Every leg pays the fee and a size-proportional impact. Spreads
// are converted to USD per token at the first leg's price so cycles rank
// alongside pairwise opportunities.
func Triangular(quotes []types.NormalizedQuote, bridges []types.NormalizedQuote, params Params) []*Opportunity {
	opps := make([]*Opportunity, 0)

	for i := range quotes {
		for j := range quotes {
			if i == j {
				continue
			}
			first, last := quotes[i], quotes[j]
			if first.VenueID == last.VenueID || !types.SameAddress(first.TokenAddress, last.TokenAddress) {
				continue
			}

			tokenA := first.Counterparty().Address
			tokenB := last.Counterparty().Address
			if types.SameAddress(tokenA, tokenB) {
				continue
			}

			for k := range bridges {
				bridge := bridges[k]
				if !connects(bridge, tokenA, tokenB) {
					continue
				}

				opp, reason := evaluateCycle(first, bridge, last, tokenA, tokenB, params)
				if opp == nil {
					OpportunitiesRejectedTotal.WithLabelValues(reason).Inc()
					continue
				}
				opps = append(opps, opp)
			}
		}
	}

	return opps
}

func connects(pool types.NormalizedQuote, tokenA string, tokenB string) bool {
	base, quote := pool.BaseToken.Address, pool.QuoteToken.Address
	return (types.SameAddress(base, tokenA) && types.SameAddress(quote, tokenB)) ||
		(types.SameAddress(base, tokenB) && types.SameAddress(quote, tokenA))
}

func evaluateCycle(
	first types.NormalizedQuote,
	bridge types.NormalizedQuote,
	last types.NormalizedQuote,
	tokenA string,
	tokenB string,
	params Params,
) (*Opportunity, string) {
	token := first.TokenAddress

	r1, ok1 := first.Rate(token)
	r2, ok2 := bridge.Rate(tokenA)
	r3, ok3 := last.Rate(tokenB)
	if !ok1 || !ok2 || !ok3 || !r1.IsPositive() || !r2.IsPositive() || !r3.IsPositive() {
		return nil, rejectNoRate
	}

	gross := r1.Mul(r2).Mul(r3)
	if gross.LessThanOrEqual(one) {
		return nil, rejectNoSpread
	}

	liq1 := first.LiquidityOf(token)
	liq2 := bridge.LiquidityOf(tokenA)
	liq3 := last.LiquidityOf(tokenB)
	if !liq1.IsPositive() || !liq2.IsPositive() || !liq3.IsPositive() {
		return nil, rejectZeroSize
	}

	// Size in token units, bounded by every leg's input-side depth.
	size := decimal.Min(
		params.Investment.Div(first.Price),
		liq1,
		liq2.Div(r1),
		liq3.Div(r1.Mul(r2)),
	)
	if !size.IsPositive() {
		return nil, rejectZeroSize
	}

	keep := one.Sub(params.Fee)
	amountIn := size
	legs := []struct {
		rate      decimal.Decimal
		liquidity decimal.Decimal
	}{
		{r1, liq1},
		{r2, liq2},
		{r3, liq3},
	}
	for _, leg := range legs {
		impact := params.Slippage.Mul(amountIn).Div(leg.liquidity)
		amountIn = amountIn.Mul(leg.rate).Mul(one.Sub(impact)).Mul(keep)
	}

	multiplier := amountIn.Div(size)
	net := multiplier.Sub(one).Mul(first.Price)
	if !net.IsPositive() {
		return nil, rejectNonPositiveNet
	}

	sellPrice := first.Price.Mul(gross)

	return &Opportunity{
		Kind:              KindTriangular,
		TokenAddress:      token,
		BuyVenue:          first.VenueID,
		SellVenue:         last.VenueID,
		BuyPrice:          first.Price,
		SellPrice:         sellPrice,
		GrossSpread:       sellPrice.Sub(first.Price),
		NetSpread:         net,
		MaxExecutableSize: size,
		ExpectedProfit:    net.Mul(size),
		Legs:              []types.NormalizedQuote{first, bridge, last},
	}, ""
}

// Rank sorts opportunities by net spread descending, then executable size
// descending, then venue identifiers.
func Rank(opps []*Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]

		if c := a.NetSpread.Cmp(b.NetSpread); c != 0 {
			return c > 0
		}
		if c := a.MaxExecutableSize.Cmp(b.MaxExecutableSize); c != 0 {
			return c > 0
		}
		if a.BuyVenue != b.BuyVenue {
			return a.BuyVenue < b.BuyVenue
		}
		if a.SellVenue != b.SellVenue {
			return a.SellVenue < b.SellVenue
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.BridgeVenue() < b.BridgeVenue()
	})
}
