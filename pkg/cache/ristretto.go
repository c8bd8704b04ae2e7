package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// RistrettoCache is a cache implementation using Ristretto.
type RistrettoCache struct {
	name   string
	cache  *ristretto.Cache
	logger *zap.Logger
}

// RistrettoConfig holds configuration for Ristretto cache.
type RistrettoConfig struct {
	Name        string // metrics label
	NumCounters int64  // Number of keys to track frequency (10x max items)
	MaxCost     int64  // Maximum number of items (each item costs 1)
	BufferItems int64  // Number of keys per Get buffer
	Logger      *zap.Logger
}

// DefaultRistrettoConfig sizes a cache for roughly maxItems entries.
func DefaultRistrettoConfig(name string, maxItems int64, logger *zap.Logger) *RistrettoConfig {
	return &RistrettoConfig{
		Name:        name,
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
		Logger:      logger,
	}
}

// NewRistrettoCache creates a new Ristretto-backed cache.
func NewRistrettoCache(cfg *RistrettoConfig) (*RistrettoCache, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &RistrettoCache{
		name:   name,
		cache:  rc,
		logger: cfg.Logger.With(zap.String("cache", name)),
	}, nil
}

// Get retrieves a value from the cache.
func (r *RistrettoCache) Get(key string) (interface{}, bool) {
	start := time.Now()
	value, found := r.cache.Get(key)
	CacheOperationDuration.WithLabelValues(r.name, "get").Observe(time.Since(start).Seconds())

	if found {
		CacheHitsTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-hit", zap.String("key", key))
	} else {
		CacheMissesTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-miss", zap.String("key", key))
	}
	return value, found
}

// Set stores a value in the cache with a TTL.
func (r *RistrettoCache) Set(key string, value interface{}, ttl time.Duration) bool {
	start := time.Now()
	success := r.cache.SetWithTTL(key, value, 1, ttl)
	CacheOperationDuration.WithLabelValues(r.name, "set").Observe(time.Since(start).Seconds())

	if success {
		CacheSetsTotal.WithLabelValues(r.name).Inc()
		r.logger.Debug("cache-set",
			zap.String("key", key),
			zap.Duration("ttl", ttl))
	}
	return success
}

// Delete removes a value from the cache.
func (r *RistrettoCache) Delete(key string) {
	r.cache.Del(key)
	CacheDeletesTotal.WithLabelValues(r.name).Inc()
	r.logger.Debug("cache-delete", zap.String("key", key))
}

// Clear removes all values from the cache.
func (r *RistrettoCache) Clear() {
	r.cache.Clear()
	r.logger.Info("cache-cleared")
}

// Close closes the cache and releases resources.
func (r *RistrettoCache) Close() {
	ratio := r.HitRatio()
	r.cache.Close()
	r.logger.Info("cache-closed", zap.Float64("hit-ratio", ratio))
}

// HitRatio returns Ristretto's internal hit ratio.
func (r *RistrettoCache) HitRatio() float64 {
	if r.cache.Metrics == nil {
		return 0
	}
	return r.cache.Metrics.Ratio()
}

// Wait blocks until all pending writes have been applied.
func (r *RistrettoCache) Wait() {
	r.cache.Wait()
}
