// Package playback buffers recent states and replays them with VCR controls.
package playback

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/arena/internal/domain"
)

// MaxSnapshots bounds the buffer; older snapshots are evicted first.
const MaxSnapshots = 300

// Snapshot is one captured state.
type Snapshot struct {
	Timestamp time.Time
	Data      domain.ApiState
}

// Status describes the player position.
type Status struct {
	Index   int
	Len     int
	Playing bool
	Live    bool
	Speed   float64
}

// Player holds up to MaxSnapshots states. In live mode it follows the newest
// one; otherwise it can be stepped, seeked or played back on a timer.
type Player struct {
	mu        sync.Mutex
	snapshots []Snapshot
	index     int
	playing   bool
	live      bool
	speed     float64
	now       func() time.Time
	stop      chan struct{}

	changes chan struct{}
}

// Option configures a Player.
type Option func(*Player)

// WithClock overrides the clock used to stamp added snapshots.
func WithClock(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// WithLive sets the initial live flag (true by default).
func WithLive(live bool) Option {
	return func(p *Player) {
		p.live = live
	}
}

// New creates an empty player at speed 1.
func New(opts ...Option) *Player {
	p := &Player{
		live:    true,
		speed:   1,
		now:     time.Now,
		changes: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add appends data stamped with the current time.
func (p *Player) Add(data domain.ApiState) {
	p.mu.Lock()
	p.appendLocked(Snapshot{Timestamp: p.now(), Data: data})
	p.mu.Unlock()
	p.notify()
}

// Load appends previously captured snapshots, oldest first.
func (p *Player) Load(snapshots []Snapshot) {
	p.mu.Lock()
	for _, s := range snapshots {
		p.appendLocked(s)
	}
	p.mu.Unlock()
	p.notify()
}

func (p *Player) appendLocked(s Snapshot) {
	p.snapshots = append(p.snapshots, s)
	if over := len(p.snapshots) - MaxSnapshots; over > 0 {
		p.snapshots = append([]Snapshot(nil), p.snapshots[over:]...)
		// keep pointing at the same snapshot while it is still buffered
		p.index -= over
		if p.index < 0 {
			p.index = 0
		}
	}
	if p.live {
		p.index = len(p.snapshots) - 1
	}
}

// Play starts timed playback. It is ignored in live mode.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live || p.playing {
		return
	}
	p.playing = true
	p.startTimerLocked()
}

// Pause stops timed playback.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauseLocked()
}

func (p *Player) pauseLocked() {
	p.playing = false
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

// GoLive stops playback and jumps to the newest snapshot.
func (p *Player) GoLive() {
	p.mu.Lock()
	p.pauseLocked()
	p.live = true
	p.index = lastIndex(len(p.snapshots))
	p.mu.Unlock()
	p.notify()
}

// Seek leaves live mode and moves to index, clamped to the buffer.
func (p *Player) Seek(index int) {
	p.mu.Lock()
	p.live = false
	p.index = clamp(index, 0, lastIndex(len(p.snapshots)))
	p.mu.Unlock()
	p.notify()
}

// StepBack leaves live mode one snapshot behind the newest, or moves one back.
func (p *Player) StepBack() {
	p.mu.Lock()
	if p.live {
		p.live = false
		p.index = clamp(len(p.snapshots)-2, 0, lastIndex(len(p.snapshots)))
	} else if p.index > 0 {
		p.index--
	}
	p.mu.Unlock()
	p.notify()
}

// StepForward moves one snapshot ahead. It is ignored in live mode.
func (p *Player) StepForward() {
	p.mu.Lock()
	if !p.live && p.index < len(p.snapshots)-1 {
		p.index++
	}
	p.mu.Unlock()
	p.notify()
}

// SetSpeed changes the playback multiplier.
func (p *Player) SetSpeed(speed float64) error {
	if speed <= 0 {
		return errors.Errorf("playback speed must be positive, got %v", speed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.speed = speed
	if p.playing {
		if p.stop != nil {
			close(p.stop)
		}
		p.startTimerLocked()
	}
	return nil
}

// Interval between playback steps at the current speed.
func (p *Player) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return intervalFor(p.speed)
}

func intervalFor(speed float64) time.Duration {
	return time.Duration(float64(time.Second) / speed)
}

// Tick advances playback by one snapshot and stops at the newest one.
// It reports whether playback is still running.
func (p *Player) Tick() bool {
	p.mu.Lock()
	if !p.playing || p.live {
		p.mu.Unlock()
		return false
	}
	running := true
	if p.index >= len(p.snapshots)-1 {
		p.pauseLocked()
		running = false
	} else {
		p.index++
	}
	p.mu.Unlock()

	p.notify()
	return running
}

func (p *Player) startTimerLocked() {
	stop := make(chan struct{})
	p.stop = stop
	interval := intervalFor(p.speed)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !p.Tick() {
					return
				}
			}
		}
	}()
}

// Current returns the snapshot at the player position.
func (p *Player) Current() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index < 0 || p.index >= len(p.snapshots) {
		return Snapshot{}, false
	}
	return p.snapshots[p.index], true
}

// Status returns the player position.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		Index:   p.index,
		Len:     len(p.snapshots),
		Playing: p.playing,
		Live:    p.live,
		Speed:   p.speed,
	}
}

// Changes signals whenever the position or buffer changes.
func (p *Player) Changes() <-chan struct{} {
	return p.changes
}

// Close stops the playback timer.
func (p *Player) Close() {
	p.Pause()
}

func (p *Player) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

func lastIndex(n int) int {
	if n == 0 {
		return 0
	}
	return n - 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
