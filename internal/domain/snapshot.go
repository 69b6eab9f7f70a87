package domain

import (
	"encoding/json"
	"time"
)

// SnapshotRecord bundles a relayed upstream payload with its journal index.
type SnapshotRecord struct {
	Index      uint64          `json:"index"`
	CapturedAt time.Time       `json:"ts"`
	Payload    json.RawMessage `json:"data"`
}
