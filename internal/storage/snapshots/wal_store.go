// Package snapshots journals relayed engine payloads in a write-ahead log so
// playback can be rebuilt after a restart.
package snapshots

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/arena/internal/domain"
)

const (
	DefaultDir   = "./wal/snapshots"
	segmentLimit = 100
	maxSegments  = 10

	snapshotKeyPrefix = "snapshot_"
)

var errNotInitialized = errors.New("snapshot journal is not initialized")

type entry struct {
	CapturedAt time.Time       `json:"ts"`
	Payload    json.RawMessage `json:"data"`
}

// WALStore persists relayed payloads in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens (or creates) the journal in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "snapshot_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends payload and returns its journal index.
func (s *WALStore) Save(capturedAt time.Time, payload []byte) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errNotInitialized
	}
	if !json.Valid(payload) {
		return 0, errors.New("snapshot payload is not valid JSON")
	}

	raw, err := json.Marshal(entry{CapturedAt: capturedAt.UTC(), Payload: payload})
	if err != nil {
		return 0, errors.Wrap(err, "marshal snapshot")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	key := fmt.Sprintf("%s%d", snapshotKeyPrefix, capturedAt.UnixMilli())
	if err := s.wal.Write(nextIndex, key, raw); err != nil {
		return 0, errors.Wrap(err, "write snapshot")
	}
	return nextIndex, nil
}

// After returns up to limit records written after index, oldest first.
// A limit of 0 means no limit. Records already rotated out of the WAL are skipped.
func (s *WALStore) After(index uint64, limit int) ([]domain.SnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.SnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, raw, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, errors.Wrapf(err, "decode snapshot %d", idx)
		}
		records = append(records, domain.SnapshotRecord{
			Index:      idx,
			CapturedAt: e.CapturedAt,
			Payload:    e.Payload,
		})
		if limit > 0 && len(records) == limit {
			break
		}
	}

	return records, nil
}

// Latest returns the newest n records, oldest first.
func (s *WALStore) Latest(n int) ([]domain.SnapshotRecord, error) {
	current := s.CurrentIndex()
	var from uint64
	if uint64(n) < current {
		from = current - uint64(n)
	}
	return s.After(from, n)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
