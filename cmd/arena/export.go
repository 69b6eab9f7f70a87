package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/arena/internal/export"
	"github.com/vadiminshakov/arena/internal/realtime"
)

func newExportCmd() *cobra.Command {
	var (
		relayURL string
		dataset  string
		format   string
		dir      string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one dashboard dataset to a CSV or JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := export.ParseDataset(dataset)
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			logger, err := newLogger(zapcore.WarnLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			exporter := export.NewExporter(realtime.NewHTTPFetcher(relayURL, timeout, nil), nil, dir, logger)
			path, err := exporter.Export(cmd.Context(), d, f)
			if errors.Is(err, export.ErrEmptyDataset) {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing to export: %s is empty\n", d)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&relayURL, "relay", "http://localhost:5000", "relay base url")
	cmd.Flags().StringVar(&dataset, "dataset", string(export.DatasetLeaderboard), "positions, rationale, history or leaderboard")
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or json")
	cmd.Flags().StringVar(&dir, "dir", ".", "output directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "request timeout")
	return cmd
}
