// Package wsconn fans JSON messages out to websocket clients.
package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/ledger-bridge/internal/logger"
)

// Config holds hub settings.
type Config struct {
	QueueSize    int           // per-client buffered messages; full queues drop
	WriteTimeout time.Duration // per-message write deadline
	OriginHosts  []string      // accepted Origin patterns, empty = same host only
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    32,
		WriteTimeout: 5 * time.Second,
	}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub accepts websocket clients and broadcasts messages to all of them.
type Hub struct {
	cfg     Config
	log     logger.LoggerInterface
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	sent    metric.Int64Counter
	dropped metric.Int64Counter
}

// NewHub creates a hub.
func NewHub(cfg Config, log logger.LoggerInterface) *Hub {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}

	meter := otel.Meter("wsconn")
	sent, _ := meter.Int64Counter("wsconn.messages.sent",
		metric.WithDescription("Messages queued to websocket clients"))
	dropped, _ := meter.Int64Counter("wsconn.messages.dropped",
		metric.WithDescription("Messages dropped because a client queue was full"))

	return &Hub{
		cfg:     cfg,
		log:     log,
		clients: make(map[*client]struct{}),
		sent:    sent,
		dropped: dropped,
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginHosts,
	})
	if err != nil {
		h.log.Warn(r.Context(), "websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, h.cfg.QueueSize)}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.log.Debug(r.Context(), "websocket client connected", "remote", r.RemoteAddr)

	// clients never send; CloseRead handles control frames and cancels on close
	ctx := conn.CloseRead(context.Background())
	h.writeLoop(ctx, c)

	h.remove(c)
	conn.Close(websocket.StatusNormalClosure, "")
	h.log.Debug(r.Context(), "websocket client disconnected", "remote", r.RemoteAddr)
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast encodes v once and queues it for every client. A client whose
// queue is full misses the message.
func (h *Hub) Broadcast(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
			h.sent.Add(ctx, 1)
		default:
			h.dropped.Add(ctx, 1)
			h.log.Warn(ctx, "websocket client queue full, message dropped")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
