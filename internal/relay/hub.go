// Package relay fans the upstream engine state out to WebSocket clients.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/metrics"
	"github.com/vadiminshakov/arena/internal/upstream"
)

const (
	writeWait      = 10 * time.Second
	maxInboundSize = 4096
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	mu   sync.Mutex
}

// send serializes writes; gorilla connections allow one concurrent writer.
func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks connected sockets.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	logger  *zap.Logger
	now     func() time.Time
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*client),
		logger:  logger,
		now:     time.Now,
	}
}

// Count returns the number of registered sockets.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WSClients.Set(float64(n))
	h.logger.Info("websocket client connected", zap.String("client", c.id.String()), zap.Int("clients", n))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	_ = c.conn.Close()
	if ok {
		metrics.WSClients.Set(float64(n))
		h.logger.Info("websocket client disconnected", zap.String("client", c.id.String()), zap.Int("clients", n))
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Broadcast writes data to every socket registered when the call started.
// Sockets that fail the write are dropped. It returns the number of successful writes.
func (h *Hub) Broadcast(data []byte) int {
	sent := 0
	for _, c := range h.snapshot() {
		if err := c.send(data); err != nil {
			h.logger.Debug("dropping websocket client", zap.String("client", c.id.String()), zap.Error(err))
			metrics.WSDropped.Inc()
			h.remove(c)
			continue
		}
		sent++
	}
	return sent
}

// Close disconnects every socket.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.mu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second),
		)
		c.mu.Unlock()
		h.remove(c)
	}
}

// encodeState builds the wire message for one upstream payload.
func encodeState(payload []byte, ts time.Time) ([]byte, error) {
	data, err := json.Marshal(domain.NewStateMessage(payload, ts))
	if err != nil {
		return nil, errors.Wrap(err, "encode state message")
	}
	return data, nil
}

// Handler upgrades the request and serves one socket. If the initial fetch
// succeeds the socket gets exactly one state message before it joins the
// broadcast set.
func (h *Hub) Handler(fetcher upstream.Fetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		c := &client{id: uuid.New(), conn: conn}
		conn.SetReadLimit(maxInboundSize)

		if err := h.sendInitial(r.Context(), c, fetcher); err != nil {
			h.logger.Debug("initial state not delivered", zap.String("client", c.id.String()), zap.Error(err))
			_ = conn.Close()
			return
		}

		h.add(c)
		defer h.remove(c)

		// inbound messages are ignored; the read loop only detects closure
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) sendInitial(ctx context.Context, c *client, fetcher upstream.Fetcher) error {
	payload, err := fetcher.Fetch(ctx)
	if err != nil {
		h.logger.Warn("initial upstream fetch failed", zap.Error(err))
		return nil
	}

	data, err := encodeState(payload, h.now())
	if err != nil {
		return err
	}
	return c.send(data)
}
