package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LogEntriesWrittenTotal tracks entries persisted by the async writer.
	LogEntriesWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_log_entries_written_total",
		Help: "Total number of log entries written to the log sink",
	})

	// LogWriteErrorsTotal tracks failed sink writes.
	LogWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_log_write_errors_total",
		Help: "Total number of log sink write failures",
	})

	// LogEntriesDroppedTotal tracks entries dropped because the queue was full.
	LogEntriesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dexarb_log_entries_dropped_total",
		Help: "Total number of log entries dropped due to a full queue",
	})

	// LogQueueDepth tracks entries waiting to be written.
	LogQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dexarb_log_queue_depth",
		Help: "Number of log entries waiting in the async writer queue",
	})
)
