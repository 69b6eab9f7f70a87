// Command arena relays trading engine state to dashboards and watches it from
// the terminal.
//
// Usage:
//
//	arena serve --config arena.yaml
//	arena watch --relay http://localhost:5000
//	arena export --dataset leaderboard --format csv
//	arena setup
//
// Environment variables (also read from .env):
//
//	ARENA_ADDR, ARENA_UPSTREAM_URL, ARENA_JOURNAL_DIR, ARENA_LOG_LEVEL
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/arena/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "arena",
		Short:         "Trading arena relay and terminal dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
		},
	}

	root.AddCommand(
		newServeCmd(),
		newWatchCmd(),
		newExportCmd(),
		newSetupCmd(),
	)
	return root
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func parseLevel(s string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}
