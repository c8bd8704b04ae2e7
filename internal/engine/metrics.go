package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal tracks scans by outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_scans_total",
		Help: "Total number of arbitrage scans by outcome",
	}, []string{"outcome"})

	// ScanDurationSeconds tracks end-to-end scan latency.
	ScanDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_scan_duration_seconds",
		Help:    "Duration of arbitrage scans",
		Buckets: prometheus.DefBuckets,
	})

	// WarningsTotal tracks per-venue warnings by code.
	WarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_scan_warnings_total",
		Help: "Total number of per-venue scan warnings",
	}, []string{"code"})

	// UsableQuotes tracks how many quotes survived normalization.
	UsableQuotes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_scan_usable_quotes",
		Help:    "Number of usable quotes per scan",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 30},
	})
)
