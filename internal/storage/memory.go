package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// MemoryLogSink keeps the most recent entries in a ring buffer and echoes
// them to the logger.
type MemoryLogSink struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	size    int
	closed  bool
	logger  *zap.Logger
}

// NewMemoryLogSink creates an in-memory sink holding up to capacity entries.
func NewMemoryLogSink(capacity int, logger *zap.Logger) *MemoryLogSink {
	if capacity <= 0 {
		capacity = 1000
	}

	logger.Info("memory-log-sink-initialized", zap.Int("capacity", capacity))

	return &MemoryLogSink{
		entries: make([]LogEntry, capacity),
		logger:  logger,
	}
}

// Append stores an entry, evicting the oldest when full.
func (m *MemoryLogSink) Append(ctx context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSinkClosed
	}

	m.entries[m.next] = entry
	m.next = (m.next + 1) % len(m.entries)
	if m.size < len(m.entries) {
		m.size++
	}

	m.logger.Info("log-entry",
		zap.String("message", entry.Message),
		zap.Time("entry-timestamp", entry.Timestamp))

	return nil
}

// Recent returns up to limit entries, newest first.
func (m *MemoryLogSink) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = normalizeLimit(limit)
	if limit > m.size {
		limit = m.size
	}

	out := make([]LogEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}

	return out, nil
}

// Close marks the sink closed.
func (m *MemoryLogSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
