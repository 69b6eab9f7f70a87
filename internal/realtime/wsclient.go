package realtime

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/normalize"
	"github.com/vadiminshakov/arena/pkg/retrier"
)

var (
	// ErrMaxReconnectAttempts is reported once the reconnect budget is spent.
	ErrMaxReconnectAttempts = errors.New("max reconnection attempts reached")
	// ErrWebSocketConnection is reported when the socket fails to open or errors out.
	ErrWebSocketConnection = errors.New("websocket connection error")
)

type wireMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// WSClient consumes the relay socket and reconnects with exponential backoff.
type WSClient struct {
	url        string
	dialer     *websocket.Dialer
	backoff    *retrier.Retrier
	normalizer *normalize.Normalizer
	logger     *zap.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	data        *domain.ApiState
	err         error
	lastUpdated time.Time
	connected   bool

	reconnect chan struct{}
	changes   chan struct{}
}

// WSOption configures a WSClient.
type WSOption func(*WSClient)

// WithBackoff replaces the reconnect schedule.
func WithBackoff(r *retrier.Retrier) WSOption {
	return func(c *WSClient) {
		c.backoff = r
	}
}

// WithNormalizer sets the normalizer applied to incoming states.
func WithNormalizer(n *normalize.Normalizer) WSOption {
	return func(c *WSClient) {
		c.normalizer = n
	}
}

// NewWSClient creates a client for the socket at wsURL.
func NewWSClient(wsURL string, logger *zap.Logger, opts ...WSOption) *WSClient {
	c := &WSClient{
		url:        wsURL,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff:    retrier.New(retrier.WithJitter(0)),
		normalizer: normalize.New(),
		logger:     logger,
		reconnect:  make(chan struct{}, 1),
		changes:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SocketURL derives the relay socket address from its HTTP base URL.
func SocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", errors.Wrap(err, "parse relay url")
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Run keeps the socket open until ctx is cancelled. After each close it waits
// Delay(n) before attempt n+1; once the budget is spent it reports
// ErrMaxReconnectAttempts and waits for Reconnect.
func (c *WSClient) Run(ctx context.Context) error {
	attempts := 0
	for {
		opened := c.session(ctx)
		if ctx.Err() != nil {
			c.setDisconnected(nil)
			return nil
		}
		if opened {
			attempts = 0
		}

		if attempts < c.backoff.MaxRetries() {
			delay := c.backoff.Delay(attempts)
			attempts++
			c.logger.Info("websocket reconnecting",
				zap.Duration("delay", delay),
				zap.Int("attempt", attempts),
				zap.Int("max_attempts", c.backoff.MaxRetries()))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			case <-c.reconnect:
				timer.Stop()
				attempts = 0
			}
			continue
		}

		c.setDisconnected(ErrMaxReconnectAttempts)
		c.logger.Warn("websocket gave up reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-c.reconnect:
			attempts = 0
		}
	}
}

// Reconnect resets the attempt budget and reopens the socket.
func (c *WSClient) Reconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	notify(c.reconnect)
	if conn != nil {
		_ = conn.Close()
	}
}

// session dials once and reads until the socket closes. It reports whether the socket opened.
func (c *WSClient) session(ctx context.Context) bool {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Debug("websocket dial failed", zap.String("url", c.url), zap.Error(err))
		c.setDisconnected(ErrWebSocketConnection)
		return false
	}

	// drain a stale reconnect request so it does not cut the next backoff short
	select {
	case <-c.reconnect:
	default:
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.err = nil
	c.mu.Unlock()
	notify(c.changes)
	c.logger.Info("websocket connected", zap.String("url", c.url))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Info("websocket disconnected", zap.Error(err))
			_ = conn.Close()
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			c.setDisconnected(nil)
			return true
		}
		c.handle(data)
	}
}

func (c *WSClient) handle(data []byte) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("failed to parse websocket message", zap.Error(err))
		return
	}
	if msg.Type != domain.MessageTypeState || len(msg.Data) == 0 || string(msg.Data) == "null" {
		return
	}

	state, err := c.normalizer.FromJSON(msg.Data)
	if err != nil {
		c.logger.Warn("failed to normalize websocket state", zap.Error(err))
		return
	}

	c.mu.Lock()
	merged := Merge(c.data, state)
	c.data = &merged
	c.lastUpdated = time.UnixMilli(msg.Timestamp)
	c.mu.Unlock()

	notify(c.changes)
}

// setDisconnected marks the socket closed. A nil err keeps the last error.
func (c *WSClient) setDisconnected(err error) {
	c.mu.Lock()
	changed := c.connected || (err != nil && c.err != err)
	c.connected = false
	if err != nil {
		c.err = err
	}
	c.mu.Unlock()

	if changed {
		notify(c.changes)
	}
}

// Snapshot returns what the socket has delivered so far.
func (c *WSClient) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Data:        c.data,
		Err:         c.err,
		LastUpdated: c.lastUpdated,
		Connected:   c.connected,
	}
}

// Changes signals on connect, disconnect and every applied message.
func (c *WSClient) Changes() <-chan struct{} {
	return c.changes
}
