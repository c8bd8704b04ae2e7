package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks connected log stream clients.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dexarb_ws_active_connections",
		Help: "Number of active log stream WebSocket connections",
	})

	// MessagesSentTotal tracks log entries pushed to clients.
	MessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_ws_messages_sent_total",
		Help: "Total number of log entries sent over WebSocket",
	})

	// WriteErrorsTotal tracks failed frame writes.
	WriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_ws_write_errors_total",
		Help: "Total number of WebSocket write failures",
	})

	// ConnectionDuration tracks log stream connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexarb_ws_connection_duration_seconds",
		Help:    "Duration of log stream connections before disconnect",
		Buckets: []float64{1, 10, 60, 300, 600, 1800, 3600, 7200, 14400},
	})
)
