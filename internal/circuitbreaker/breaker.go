package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Registry holds one circuit breaker per venue so a venue that keeps failing
// is skipped quickly instead of eating the shared fetch deadline.
type Registry struct {
	maxFailures uint32
	openTimeout time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// Config holds circuit breaker configuration.
type Config struct {
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // time spent open before half-open probing
	Logger      *zap.Logger
}

// Status holds one breaker's state for debugging and HTTP endpoints.
type Status struct {
	Key                 string `json:"key"`
	State               string `json:"state"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
	TotalFailures       uint32 `json:"total_failures"`
}

// New creates a breaker registry.
func New(cfg *Config) (registry *Registry, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.MaxFailures == 0 {
		return nil, fmt.Errorf("max failures must be positive")
	}
	if cfg.OpenTimeout <= 0 {
		return nil, fmt.Errorf("open timeout must be positive")
	}

	return &Registry{
		maxFailures: cfg.MaxFailures,
		openTimeout: cfg.OpenTimeout,
		logger:      cfg.Logger,
		breakers:    make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}, nil
}

// Execute runs fn through the breaker for key.
func (r *Registry) Execute(key string, fn func() ([]byte, error)) ([]byte, error) {
	body, err := r.breaker(key).Execute(fn)
	if IsOpen(err) {
		BreakerRejectionsTotal.WithLabelValues(key).Inc()
	}
	return body, err
}

// State returns the current state for key. Unknown keys are closed.
func (r *Registry) State(key string) gobreaker.State {
	r.mu.Lock()
	cb, ok := r.breakers[key]
	r.mu.Unlock()

	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}

// Statuses returns every known breaker sorted by key.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.breakers))
	for key, cb := range r.breakers {
		counts := cb.Counts()
		statuses = append(statuses, Status{
			Key:                 key,
			State:               cb.State().String(),
			ConsecutiveFailures: counts.ConsecutiveFailures,
			TotalFailures:       counts.TotalFailures,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Key < statuses[j].Key
	})

	return statuses
}

// IsOpen reports whether err was returned because a breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (r *Registry) breaker(key string) *gobreaker.CircuitBreaker[[]byte] {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[key]
	if ok {
		return cb
	}

	maxFailures := r.maxFailures
	cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     r.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Caller cancellation says nothing about venue health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: r.onStateChange,
	})
	r.breakers[key] = cb
	BreakerState.WithLabelValues(key).Set(stateValue(gobreaker.StateClosed))

	return cb
}

func (r *Registry) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	BreakerState.WithLabelValues(name).Set(stateValue(to))
	BreakerStateChangesTotal.WithLabelValues(name, to.String()).Inc()

	if to == gobreaker.StateOpen {
		r.logger.Warn("circuit-breaker-opened",
			zap.String("venue", name),
			zap.String("from", from.String()),
			zap.Duration("open-timeout", r.openTimeout))
		return
	}

	r.logger.Info("circuit-breaker-state-changed",
		zap.String("venue", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}
