package httpserver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks API requests by method, route and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_http_requests_total",
		Help: "Total number of API requests",
	}, []string{"method", "route", "status"})

	// RequestDurationSeconds tracks API latency.
	RequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dexarb_http_request_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
