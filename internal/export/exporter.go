package export

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/realtime"
	"github.com/vadiminshakov/arena/pkg/retrier"
)

// ErrEmptyDataset is returned when there is nothing to write.
var ErrEmptyDataset = errors.New("dataset is empty")

// Exporter fetches the current state and writes one dataset to a directory.
type Exporter struct {
	fetcher realtime.StateFetcher
	retrier *retrier.Retrier
	dir     string
	logger  *zap.Logger
	now     func() time.Time
}

// NewExporter creates an exporter writing into dir.
func NewExporter(fetcher realtime.StateFetcher, r *retrier.Retrier, dir string, logger *zap.Logger) *Exporter {
	if r == nil {
		r = retrier.New(retrier.WithMaxRetries(3))
	}
	return &Exporter{
		fetcher: fetcher,
		retrier: r,
		dir:     dir,
		logger:  logger,
		now:     time.Now,
	}
}

// Export writes dataset d in format f and returns the file path.
func (e *Exporter) Export(ctx context.Context, d Dataset, f Format) (string, error) {
	state, err := retrier.DoWithData(e.retrier, ctx, func(ctx context.Context) (domain.ApiState, error) {
		return e.fetcher.FetchState(ctx)
	})
	if err != nil {
		return "", errors.Wrap(err, "fetch state for export")
	}

	return e.Write(state, d, f)
}

// Write encodes d from an already fetched state.
func (e *Exporter) Write(state domain.ApiState, d Dataset, f Format) (string, error) {
	table, err := Build(state, d)
	if err != nil {
		return "", err
	}
	if table.Len() == 0 {
		return "", ErrEmptyDataset
	}

	var content []byte
	switch f {
	case FormatCSV:
		content = CSV(table)
	case FormatJSON:
		if content, err = JSON(table); err != nil {
			return "", err
		}
	default:
		return "", errors.Errorf("unknown format %q", f)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create export dir %s", e.dir)
	}
	path := filepath.Join(e.dir, FileName(d, f, e.now()))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}

	e.logger.Info("dataset exported",
		zap.String("dataset", string(d)),
		zap.String("format", string(f)),
		zap.Int("rows", table.Len()),
		zap.String("path", path))

	return path, nil
}
