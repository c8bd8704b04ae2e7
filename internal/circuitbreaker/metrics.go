package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState is the current state per venue (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dexarb_circuit_breaker_state",
		Help: "Circuit breaker state per venue (0=closed, 1=half-open, 2=open)",
	}, []string{"venue"})

	// BreakerStateChangesTotal counts state transitions.
	BreakerStateChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_circuit_breaker_state_changes_total",
		Help: "Total number of circuit breaker state transitions",
	}, []string{"venue", "to"})

	// BreakerRejectionsTotal counts calls rejected while open.
	BreakerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dexarb_circuit_breaker_rejections_total",
		Help: "Total number of venue calls rejected by an open circuit breaker",
	}, []string{"venue"})
)
