package marketdata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks Dexscreener requests by endpoint and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_marketdata_requests_total",
		Help: "Total number of market data API requests",
	}, []string{"endpoint", "status"})

	// RequestDurationSeconds tracks Dexscreener request latency.
	RequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dexarb_marketdata_request_duration_seconds",
		Help:    "Duration of market data API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// VenuesDiscovered tracks how many venues a discovery returned.
	VenuesDiscovered = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_marketdata_venues_discovered",
		Help:    "Number of venues returned by discovery per token",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 30, 50},
	})

	// FetchDurationSeconds tracks the fan-out fetch including the deadline.
	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_marketdata_fetch_duration_seconds",
		Help:    "Duration of concurrent venue fetches",
		Buckets: prometheus.DefBuckets,
	})

	// RateLimitWaitFailuresTotal tracks requests abandoned while waiting on the local rate limiter.
	RateLimitWaitFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_marketdata_rate_limit_wait_failures_total",
		Help: "Total number of requests abandoned while waiting for a rate limit token",
	})

	// VenueFetchFailuresTotal tracks venues omitted from a fetch.
	VenueFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_marketdata_venue_fetch_failures_total",
		Help: "Total number of venue fetches that failed or timed out",
	}, []string{"reason"})
)
