package upstream

import (
	"context"
	"time"

	"github.com/vadiminshakov/arena/internal/metrics"
)

// Fetcher returns the current upstream state document.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type observed struct {
	next   Fetcher
	source string
}

// Observed records every fetch made through f under the given metrics source.
func Observed(f Fetcher, source string) Fetcher {
	return &observed{next: f, source: source}
}

func (o *observed) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	body, err := o.next.Fetch(ctx)
	metrics.ObserveFetch(o.source, time.Since(start).Seconds(), err)
	return body, err
}
