package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/normalize"
)

// HistoryEntry is one journal record decoded into a state.
type HistoryEntry struct {
	Index      uint64
	CapturedAt time.Time
	State      domain.ApiState
}

// FetchHistory reads the newest journal records from the relay's
// /api/snapshots endpoint, oldest first. Records that do not normalize are skipped.
func FetchHistory(ctx context.Context, baseURL string, limit int, timeout time.Duration, normalizer *normalize.Normalizer) ([]HistoryEntry, error) {
	if normalizer == nil {
		normalizer = normalize.New()
	}

	q := url.Values{}
	q.Set("tail", "1")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/api/snapshots?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build history request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch history")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("API Error: %s", resp.Status)
	}

	var records []domain.SnapshotRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decode history")
	}

	out := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		state, err := normalizer.FromJSON(r.Payload)
		if err != nil {
			continue
		}
		out = append(out, HistoryEntry{Index: r.Index, CapturedAt: r.CapturedAt, State: state})
	}
	return out, nil
}
