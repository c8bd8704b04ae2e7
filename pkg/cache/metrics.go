package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_cache_hits_total",
		Help: "Total number of cache hits",
	}, []string{"cache"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_cache_misses_total",
		Help: "Total number of cache misses",
	}, []string{"cache"})

	CacheSetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_cache_sets_total",
		Help: "Total number of cache sets",
	}, []string{"cache"})

	CacheDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_cache_deletes_total",
		Help: "Total number of cache deletes",
	}, []string{"cache"})

	CacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dexarb_cache_operation_duration_seconds",
		Help:    "Duration of cache operations",
		Buckets: []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01},
	}, []string{"cache", "operation"})
)
