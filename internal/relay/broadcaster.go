package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/metrics"
	"github.com/vadiminshakov/arena/internal/upstream"
)

// DefaultInterval between broadcast ticks.
const DefaultInterval = 3 * time.Second

// Journal stores every payload that was broadcast.
type Journal interface {
	Save(capturedAt time.Time, payload []byte) (uint64, error)
}

// Broadcaster periodically pushes fresh upstream state to every hub socket.
type Broadcaster struct {
	hub      *Hub
	fetcher  upstream.Fetcher
	journal  Journal
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithJournal appends each broadcast payload to j.
func WithJournal(j Journal) Option {
	return func(b *Broadcaster) {
		b.journal = j
	}
}

// WithClock overrides the clock used to stamp messages.
func WithClock(now func() time.Time) Option {
	return func(b *Broadcaster) {
		b.now = now
	}
}

// NewBroadcaster creates a broadcaster ticking every interval.
func NewBroadcaster(hub *Hub, fetcher upstream.Fetcher, interval time.Duration, logger *zap.Logger, opts ...Option) *Broadcaster {
	if interval <= 0 {
		interval = DefaultInterval
	}

	b := &Broadcaster{
		hub:      hub,
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run ticks until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("broadcaster started", zap.Duration("interval", b.interval))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("broadcaster stopped")
			return nil
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

// Tick performs one broadcast round and returns the number of sockets reached.
// Without connected sockets upstream is not contacted. A failed fetch skips the round.
func (b *Broadcaster) Tick(ctx context.Context) int {
	if b.hub.Count() == 0 {
		metrics.Broadcasts.WithLabelValues(metrics.BroadcastSkipped).Inc()
		return 0
	}

	payload, err := b.fetcher.Fetch(ctx)
	if err != nil {
		metrics.Broadcasts.WithLabelValues(metrics.BroadcastFailed).Inc()
		b.logger.Warn("broadcast fetch failed", zap.Error(err))
		return 0
	}

	now := b.now()
	data, err := encodeState(payload, now)
	if err != nil {
		metrics.Broadcasts.WithLabelValues(metrics.BroadcastFailed).Inc()
		b.logger.Error("broadcast encode failed", zap.Error(err))
		return 0
	}

	sent := b.hub.Broadcast(data)
	metrics.Broadcasts.WithLabelValues(metrics.BroadcastSent).Inc()

	if b.journal != nil {
		if idx, err := b.journal.Save(now, payload); err != nil {
			b.logger.Error("journal snapshot", zap.Error(err))
		} else {
			metrics.JournalRecords.Inc()
			b.logger.Debug("journaled snapshot", zap.Uint64("index", idx))
		}
	}

	return sent
}
