package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
)

// DefaultPollInterval between state fetches in polling mode.
const DefaultPollInterval = 3 * time.Second

// Snapshot is what one transport currently knows.
type Snapshot struct {
	Data        *domain.ApiState
	Err         error
	LastUpdated time.Time
	Connected   bool
}

// Poller fetches state on a fixed interval. Errors are kept until the next
// successful fetch; there is no backoff.
type Poller struct {
	fetcher  StateFetcher
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	data        *domain.ApiState
	err         error
	lastUpdated time.Time

	changes chan struct{}
}

// NewPoller creates a poller.
func NewPoller(fetcher StateFetcher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		changes:  make(chan struct{}, 1),
	}
}

// Run fetches immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	_ = p.Refetch(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = p.Refetch(ctx)
		}
	}
}

// Refetch performs one fetch and folds the result into the current state.
// Ticks and manual refetches share this path; the last write wins.
func (p *Poller) Refetch(ctx context.Context) error {
	state, err := p.fetcher.FetchState(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	p.mu.Lock()
	if err != nil {
		p.err = err
		p.logger.Debug("poll failed", zap.Error(err))
	} else {
		merged := Merge(p.data, state)
		p.data = &merged
		p.err = nil
		p.lastUpdated = p.now()
	}
	p.mu.Unlock()

	notify(p.changes)
	return err
}

// Snapshot returns the current poll state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		Data:        p.data,
		Err:         p.err,
		LastUpdated: p.lastUpdated,
		Connected:   p.err == nil,
	}
}

// Changes signals after every fetch.
func (p *Poller) Changes() <-chan struct{} {
	return p.changes
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
