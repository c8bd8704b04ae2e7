// Package websocket streams log entries to browser clients.
package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/mselser95/dex-arb/internal/storage"
	"go.uber.org/zap"
)

// LogSource hands out subscriptions to newly written log entries.
type LogSource interface {
	Subscribe(buffer int) (<-chan storage.LogEntry, func())
}

// Hub upgrades HTTP requests and pushes each new log entry to every client as
// a JSON text frame.
type Hub struct {
	source       LogSource
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration
	sendBuffer   int
	logger       *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
	wg      sync.WaitGroup

	nextID atomic.Int64
}

// Config holds hub configuration.
type Config struct {
	Source       LogSource
	PingInterval time.Duration
	PongTimeout  time.Duration
	SendBuffer   int
	Logger       *zap.Logger
}

type client struct {
	id          int64
	conn        *websocket.Conn
	cancel      func()
	connectedAt time.Time
	closeOnce   sync.Once
}

// New creates a new hub.
func New(cfg *Config) *Hub {
	pingInterval := cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 10 * time.Second
	}
	pongTimeout := cfg.PongTimeout
	if pongTimeout <= pingInterval {
		pongTimeout = pingInterval + pingInterval/2
	}
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 64
	}

	return &Hub{
		source: cfg.Source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Dashboards are served from other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		pongTimeout:  pongTimeout,
		sendBuffer:   sendBuffer,
		logger:       cfg.Logger,
		clients:      make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and streams until the client goes away
// or the hub is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "log stream closed", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket-upgrade-failed", zap.Error(err))
		return
	}

	entries, cancel := h.source.Subscribe(h.sendBuffer)
	c := &client{
		id:          h.nextID.Add(1),
		conn:        conn,
		cancel:      cancel,
		connectedAt: time.Now(),
	}

	if !h.register(c) {
		cancel()
		_ = conn.Close()
		return
	}

	h.logger.Info("log-stream-client-connected",
		zap.Int64("client-id", c.id),
		zap.String("remote-addr", r.RemoteAddr))

	h.wg.Add(1)
	go h.readLoop(c)

	h.writeLoop(c, entries)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	ActiveConnections.Set(float64(len(h.clients)))
	return true
}

func (h *Hub) unregister(c *client) {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()

		h.mu.Lock()
		delete(h.clients, c)
		ActiveConnections.Set(float64(len(h.clients)))
		h.mu.Unlock()

		ConnectionDuration.Observe(time.Since(c.connectedAt).Seconds())
		h.logger.Info("log-stream-client-disconnected", zap.Int64("client-id", c.id))
	})
}

// readLoop only services control frames; client messages are discarded.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("log-stream-read-error", zap.Int64("client-id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client, entries <-chan storage.LogEntry) {
	defer h.unregister(c)

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				// Source closed: say goodbye.
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}

			err := h.send(c, entry)
			if err != nil {
				WriteErrorsTotal.Inc()
				h.logger.Debug("log-stream-write-failed", zap.Int64("client-id", c.id), zap.Error(err))
				return
			}
			MessagesSentTotal.Inc()

		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			if err != nil {
				h.logger.Debug("log-stream-ping-failed", zap.Int64("client-id", c.id), zap.Error(err))
				return
			}
		}
	}
}

func (h *Hub) send(c *client, entry storage.LogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	err = c.conn.SetWriteDeadline(time.Now().Add(h.pingInterval))
	if err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	err = c.conn.WriteMessage(websocket.TextMessage, payload)
	if err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
	h.wg.Wait()

	ActiveConnections.Set(0)
	h.logger.Info("log-stream-hub-closed", zap.Int("clients", len(clients)))

	return nil
}
