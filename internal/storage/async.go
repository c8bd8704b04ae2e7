package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AsyncWriter queues log entries for a LogSink and writes them from a single
// background worker. Callers never block on the sink.
type AsyncWriter struct {
	sink         LogSink
	queue        chan LogEntry
	writeTimeout time.Duration
	logger       *zap.Logger

	mu     sync.RWMutex
	closed bool

	subMu       sync.RWMutex
	subscribers map[int]chan LogEntry
	nextSubID   int

	wg sync.WaitGroup
}

// AsyncWriterConfig holds async writer configuration.
type AsyncWriterConfig struct {
	Sink         LogSink
	BufferSize   int
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// NewAsyncWriter creates a writer. Call Start before writing.
func NewAsyncWriter(cfg *AsyncWriterConfig) *AsyncWriter {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &AsyncWriter{
		sink:         cfg.Sink,
		queue:        make(chan LogEntry, buffer),
		writeTimeout: timeout,
		logger:       cfg.Logger,
		subscribers:  make(map[int]chan LogEntry),
	}
}

// Start launches the background worker.
func (w *AsyncWriter) Start() {
	w.wg.Add(1)
	go w.run()
}

// Write enqueues a message stamped with the current time. When the queue is
// full or the writer is closed the entry is dropped.
func (w *AsyncWriter) Write(message string) {
	w.WriteEntry(LogEntry{Message: message, Timestamp: time.Now().UTC()})
}

// WriteEntry enqueues a prepared entry without blocking.
func (w *AsyncWriter) WriteEntry(entry LogEntry) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		LogEntriesDroppedTotal.Inc()
		return
	}

	select {
	case w.queue <- entry:
		LogQueueDepth.Set(float64(len(w.queue)))
	default:
		LogEntriesDroppedTotal.Inc()
		w.logger.Warn("log-queue-full", zap.String("message", entry.Message))
	}
}

// Recent reads through to the sink.
func (w *AsyncWriter) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	return w.sink.Recent(ctx, limit)
}

// Subscribe registers a listener for entries after they are written. The
// returned cancel func unregisters it. Slow listeners miss entries.
func (w *AsyncWriter) Subscribe(buffer int) (<-chan LogEntry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan LogEntry, buffer)

	w.subMu.Lock()
	id := w.nextSubID
	w.nextSubID++
	w.subscribers[id] = ch
	w.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.subMu.Lock()
			defer w.subMu.Unlock()
			if sub, ok := w.subscribers[id]; ok {
				delete(w.subscribers, id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

// Close stops accepting entries, flushes the queue and closes subscriber
// channels. The sink itself is left open.
func (w *AsyncWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()

	w.wg.Wait()

	w.subMu.Lock()
	for id, sub := range w.subscribers {
		delete(w.subscribers, id)
		close(sub)
	}
	w.subMu.Unlock()

	w.logger.Info("async-log-writer-closed")
	return nil
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()

	for entry := range w.queue {
		LogQueueDepth.Set(float64(len(w.queue)))

		ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
		err := w.sink.Append(ctx, entry)
		cancel()

		if err != nil {
			LogWriteErrorsTotal.Inc()
			w.logger.Error("log-write-failed",
				zap.String("message", entry.Message),
				zap.Error(err))
			continue
		}

		LogEntriesWrittenTotal.Inc()
		w.publish(entry)
	}
}

func (w *AsyncWriter) publish(entry LogEntry) {
	w.subMu.RLock()
	defer w.subMu.RUnlock()

	for _, sub := range w.subscribers {
		select {
		case sub <- entry:
		default:
		}
	}
}
