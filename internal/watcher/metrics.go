package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollDurationSeconds tracks how long one pass over all tokens takes.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_watcher_poll_duration_seconds",
		Help:    "Duration of one watcher pass over all tokens",
		Buckets: prometheus.DefBuckets,
	})

	// ScanErrorsTotal tracks failed watched scans by error code.
	ScanErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_watcher_scan_errors_total",
		Help: "Total number of failed watcher scans",
	}, []string{"code"})

	// LatestOpportunities tracks the opportunity count of each token's last scan.
	LatestOpportunities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dexarb_watcher_latest_opportunities",
		Help: "Number of opportunities found by the latest scan",
	}, []string{"token"})

	// BestNetSpread tracks the best net spread of each token's last scan.
	BestNetSpread = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dexarb_watcher_best_net_spread",
		Help: "Best net spread per unit found by the latest scan",
	}, []string{"token"})
)
