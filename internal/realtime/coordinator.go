package realtime

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/normalize"
	"github.com/vadiminshakov/arena/pkg/retrier"
)

// View is the merged picture the dashboard renders.
type View struct {
	Data        *domain.ApiState
	Loading     bool
	Err         error
	LastUpdated time.Time
	Mode        Mode
	Connected   bool
	ExternalAPI bool
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	// RelayURL is the relay serving /ws and /api/state.
	RelayURL string
	// APIURL optionally points polling at another host. When it differs from
	// the relay host the socket is never opened.
	APIURL       string
	Preferred    Mode
	PollInterval time.Duration
	Timeout      time.Duration
	Normalizer   *normalize.Normalizer
	Backoff      *retrier.Retrier
}

// Coordinator chooses between polling and the socket and exposes one View.
type Coordinator struct {
	poller   *Poller
	ws       *WSClient
	external bool
	logger   *zap.Logger

	mu         sync.Mutex
	preferred  Mode
	effective  Mode
	pollCancel context.CancelFunc

	modeChanged chan struct{}
	updates     chan struct{}
}

// NewCoordinator wires the poller and, for same-host APIs, the socket client.
func NewCoordinator(cfg CoordinatorConfig, logger *zap.Logger) (*Coordinator, error) {
	relay, err := url.Parse(cfg.RelayURL)
	if err != nil || relay.Host == "" {
		return nil, errors.Errorf("invalid relay url %q", cfg.RelayURL)
	}
	if cfg.Preferred == "" {
		cfg.Preferred = ModeAuto
	}
	if cfg.Normalizer == nil {
		cfg.Normalizer = normalize.New()
	}

	apiBase := cfg.RelayURL
	if cfg.APIURL != "" {
		apiBase = cfg.APIURL
	}

	c := &Coordinator{
		poller:      NewPoller(NewHTTPFetcher(apiBase, cfg.Timeout, cfg.Normalizer), cfg.PollInterval, logger.With(zap.String("component", "poller"))),
		external:    IsExternalAPI(cfg.APIURL, relay.Host),
		logger:      logger,
		preferred:   cfg.Preferred,
		effective:   ModePolling,
		modeChanged: make(chan struct{}, 1),
		updates:     make(chan struct{}, 1),
	}

	if !c.external {
		wsURL, err := SocketURL(cfg.RelayURL)
		if err != nil {
			return nil, err
		}
		opts := []WSOption{WithNormalizer(cfg.Normalizer)}
		if cfg.Backoff != nil {
			opts = append(opts, WithBackoff(cfg.Backoff))
		}
		c.ws = NewWSClient(wsURL, logger.With(zap.String("component", "websocket")), opts...)
	}

	return c, nil
}

// Run drives both transports until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	var wsChanges <-chan struct{}
	if c.ws != nil {
		wsChanges = c.ws.Changes()
		go func() {
			_ = c.ws.Run(ctx)
		}()
	}

	c.apply(ctx)

	for {
		select {
		case <-ctx.Done():
			c.stopPolling()
			return nil
		case <-wsChanges:
			c.apply(ctx)
			notify(c.updates)
		case <-c.poller.Changes():
			notify(c.updates)
		case <-c.modeChanged:
			c.apply(ctx)
			notify(c.updates)
		}
	}
}

// apply recomputes the effective mode and runs the poller only in polling mode.
func (c *Coordinator) apply(ctx context.Context) {
	connected := c.ws != nil && c.ws.Snapshot().Connected

	c.mu.Lock()
	defer c.mu.Unlock()

	effective := Resolve(c.preferred, connected, c.external)
	if effective != c.effective {
		c.logger.Info("connection mode changed", zap.String("from", string(c.effective)), zap.String("to", string(effective)))
	}
	c.effective = effective

	if effective == ModePolling && c.pollCancel == nil {
		pollCtx, cancel := context.WithCancel(ctx)
		c.pollCancel = cancel
		go func() {
			_ = c.poller.Run(pollCtx)
		}()
	}
	if effective != ModePolling && c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

func (c *Coordinator) stopPolling() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
	}
}

// SetMode changes the preferred mode.
func (c *Coordinator) SetMode(m Mode) {
	c.mu.Lock()
	c.preferred = m
	c.mu.Unlock()
	notify(c.modeChanged)
}

// Refetch polls once in polling mode and reopens the socket otherwise.
func (c *Coordinator) Refetch(ctx context.Context) error {
	c.mu.Lock()
	effective := c.effective
	c.mu.Unlock()

	if effective == ModePolling || c.ws == nil {
		return c.poller.Refetch(ctx)
	}
	c.ws.Reconnect()
	return nil
}

// View returns the state of the transport currently in use.
func (c *Coordinator) View() View {
	c.mu.Lock()
	effective := c.effective
	c.mu.Unlock()

	var snap Snapshot
	if effective == ModeWebSocket && c.ws != nil {
		snap = c.ws.Snapshot()
	} else {
		snap = c.poller.Snapshot()
	}

	return View{
		Data:        snap.Data,
		Loading:     snap.Data == nil && snap.Err == nil,
		Err:         snap.Err,
		LastUpdated: snap.LastUpdated,
		Mode:        effective,
		Connected:   snap.Connected,
		ExternalAPI: c.external,
	}
}

// Updates signals whenever the View may have changed.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates
}
