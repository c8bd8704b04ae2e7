package storage

import (
	"context"
	"errors"
	"time"
)

// DefaultQueryLimit is how many entries Recent returns when no limit is given.
const DefaultQueryLimit = 100

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("log sink closed")

// LogEntry is one operational log line.
type LogEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// LogSink is the interface for storing and reading log entries.
type LogSink interface {
	// Append stores a log entry.
	Append(ctx context.Context, entry LogEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]LogEntry, error)

	// Close releases the sink's resources.
	Close() error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	return limit
}
