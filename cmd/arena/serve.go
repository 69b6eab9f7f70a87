package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/arena/config"
	"github.com/vadiminshakov/arena/dashboard"
	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/metrics"
	"github.com/vadiminshakov/arena/internal/relay"
	"github.com/vadiminshakov/arena/internal/storage/snapshots"
	"github.com/vadiminshakov/arena/internal/upstream"
)

type journalReader interface {
	After(index uint64, limit int) ([]domain.SnapshotRecord, error)
	Latest(n int) ([]domain.SnapshotRecord, error)
}

func newServeCmd() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.Load()
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}
	flags.Register(cmd.Flags())
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	client := upstream.NewClient(upstream.Config{
		BaseURL:   cfg.UpstreamURL,
		Timeout:   cfg.UpstreamTimeout,
		RateLimit: cfg.UpstreamRateLimit,
		Burst:     cfg.UpstreamBurst,
	}, logger.With(zap.String("component", "upstream")))

	hub := relay.NewHub(logger.With(zap.String("component", "hub")))

	var (
		reader journalReader
		opts   []relay.Option
	)
	if cfg.JournalDir != "" {
		store, err := snapshots.NewWALStore(cfg.JournalDir)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("failed to close snapshot journal", zap.Error(err))
			}
		}()
		reader = store
		opts = append(opts, relay.WithJournal(store))
	}

	broadcaster := relay.NewBroadcaster(hub, upstream.Observed(client, metrics.SourceBroadcast), cfg.BroadcastInterval,
		logger.With(zap.String("component", "broadcaster")), opts...)
	srv := dashboard.NewServer(cfg.Addr, client, hub, reader, logger.With(zap.String("component", "server")))

	logger.Info("starting relay",
		zap.String("upstream", client.URL()),
		zap.Duration("broadcast_interval", cfg.BroadcastInterval),
		zap.Bool("journal", cfg.JournalDir != ""))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return broadcaster.Run(gctx)
	})
	g.Go(func() error {
		if len(cfg.TLS.Domains) > 0 {
			return srv.StartWithAutoTLS(gctx, cfg.TLS.Domains, cfg.TLS.CacheDir)
		}
		return srv.Start(gctx)
	})
	return g.Wait()
}
