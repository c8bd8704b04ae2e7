package arbitrage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpportunitiesDetectedTotal tracks arbitrage opportunities detected.
	OpportunitiesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexarb_opportunities_detected_total",
			Help: "Total number of arbitrage opportunities detected",
		},
		[]string{"kind"},
	)

	// OpportunitiesRejectedTotal tracks rejected candidates by reason.
	OpportunitiesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dexarb_opportunities_rejected_total",
			Help: "Total number of arbitrage candidates rejected",
		},
		[]string{"reason"},
	)

	// NetSpreadBPS tracks net spread relative to the buy price in basis points.
	NetSpreadBPS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_opportunity_net_spread_bps",
		Help:    "Arbitrage opportunity net spread after fees and slippage in basis points",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000},
	})

	// ExpectedProfitUSD tracks expected profit per opportunity.
	ExpectedProfitUSD = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_opportunity_expected_profit_usd",
		Help:    "Arbitrage opportunity expected profit in USD",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1, 2, 4, ..., 2048
	})

	// DetectionDurationSeconds tracks detector latency.
	DetectionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_detection_duration_seconds",
		Help:    "Duration of arbitrage detection per scan",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
)
