package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/analytics"
	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/normalize"
	"github.com/vadiminshakov/arena/internal/playback"
	"github.com/vadiminshakov/arena/internal/realtime"
	"github.com/vadiminshakov/arena/internal/render"
)

const watchHelp = "commands: play, pause, live, back, fwd, seek N, speed X, mode polling|websocket|auto, detail ID, refetch, quit"

type watchOptions struct {
	relayURL     string
	apiURL       string
	mode         string
	pollInterval time.Duration
	timeout      time.Duration
	history      bool
	timezone     string
	logLevel     string
}

func newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the relay in the terminal with playback controls",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, opts, os.Stdin, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.relayURL, "relay", "http://localhost:5000", "relay base url serving /ws and /api/state")
	f.StringVar(&opts.apiURL, "api", "", "poll another host instead of the relay; disables the websocket")
	f.StringVar(&opts.mode, "mode", string(realtime.ModeAuto), "polling, websocket or auto")
	f.DurationVar(&opts.pollInterval, "poll-interval", realtime.DefaultPollInterval, "polling interval")
	f.DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")
	f.BoolVar(&opts.history, "history", true, "preload playback from the relay journal")
	f.StringVar(&opts.timezone, "tz", "", "time zone for timestamps, default local")
	f.StringVar(&opts.logLevel, "log-level", "error", "log level")
	return cmd
}

// watcher ties the coordinator, the player and the renderer together.
type watcher struct {
	coord    *realtime.Coordinator
	player   *playback.Player
	renderer *render.Renderer
	out      io.Writer

	lastSeen time.Time
	detail   domain.StrategyID
	notice   string
}

func runWatch(ctx context.Context, opts watchOptions, in io.Reader, out io.Writer) (err error) {
	mode, err := realtime.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loc := time.Local
	if opts.timezone != "" {
		if loc, err = time.LoadLocation(opts.timezone); err != nil {
			return errors.Wrapf(err, "load time zone %s", opts.timezone)
		}
	}

	normalizer := normalize.New()
	coord, err := realtime.NewCoordinator(realtime.CoordinatorConfig{
		RelayURL:     opts.relayURL,
		APIURL:       opts.apiURL,
		Preferred:    mode,
		PollInterval: opts.pollInterval,
		Timeout:      opts.timeout,
		Normalizer:   normalizer,
	}, logger)
	if err != nil {
		return err
	}

	w := &watcher{
		coord:    coord,
		player:   playback.New(),
		renderer: render.New(loc),
		out:      out,
	}
	defer w.player.Close()

	if opts.history {
		entries, err := realtime.FetchHistory(ctx, opts.relayURL, playback.MaxSnapshots, opts.timeout, normalizer)
		if err != nil {
			logger.Warn("playback history unavailable", zap.Error(err))
		}
		w.player.Load(toSnapshots(entries))
	}

	// a rendering panic ends the session with its stack; re-running restarts it
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("dashboard crashed: %v\n%s", r, debug.Stack())
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = coord.Run(ctx)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	w.draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-coord.Updates():
			w.capture()
			w.draw()
		case <-w.player.Changes():
			w.draw()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := w.handle(ctx, line); quit {
				return nil
			}
			w.draw()
		}
	}
}

func toSnapshots(entries []realtime.HistoryEntry) []playback.Snapshot {
	out := make([]playback.Snapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, playback.Snapshot{Timestamp: e.CapturedAt, Data: e.State})
	}
	return out
}

// capture feeds each new state into the player once.
func (w *watcher) capture() {
	v := w.coord.View()
	if v.Data == nil || v.LastUpdated.Equal(w.lastSeen) {
		return
	}
	w.lastSeen = v.LastUpdated
	w.player.Add(*v.Data)
}

// handle applies one command line and reports whether to quit.
func (w *watcher) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	w.notice = ""

	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "q", "quit", "exit":
		return true
	case "play":
		w.player.Play()
	case "pause":
		w.player.Pause()
	case "live":
		w.player.GoLive()
	case "back", "b":
		w.player.StepBack()
	case "fwd", "f":
		w.player.StepForward()
	case "seek":
		n, err := strconv.Atoi(arg)
		if err != nil {
			w.notice = "seek needs a snapshot number"
			return false
		}
		w.player.Seek(n - 1)
	case "speed":
		x, err := strconv.ParseFloat(arg, 64)
		if err == nil {
			err = w.player.SetSpeed(x)
		}
		if err != nil {
			w.notice = "invalid speed: " + arg
		}
	case "mode":
		m, err := realtime.ParseMode(arg)
		if err != nil {
			w.notice = err.Error()
			return false
		}
		w.coord.SetMode(m)
	case "detail":
		w.detail = ""
		if len(fields) > 1 {
			// ids are case sensitive
			w.detail = domain.StrategyID(strings.Fields(line)[1])
		}
	case "refetch", "r":
		if err := w.coord.Refetch(ctx); err != nil {
			w.notice = err.Error()
		}
	default:
		w.notice = watchHelp
	}
	return false
}

// shown is the state on screen: the playback position unless live.
func (w *watcher) shown(v realtime.View) *domain.ApiState {
	status := w.player.Status()
	if cur, ok := w.player.Current(); ok && !status.Live {
		return &cur.Data
	}
	return v.Data
}

func (w *watcher) draw() {
	v := w.coord.View()
	state := w.shown(v)
	current, _ := w.player.Current()

	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	b.WriteString(w.renderer.Dashboard(v, state, w.player.Status(), current))

	if w.detail != "" && state != nil {
		if s, ok := analytics.Summarize(*state, w.detail); ok {
			b.WriteString("\n\n" + w.renderer.Summary(s))
		} else {
			b.WriteString("\n\nno data for " + string(w.detail))
		}
	}
	if w.notice != "" {
		b.WriteString("\n\n" + w.notice)
	}
	b.WriteString("\n\n> ")

	fmt.Fprint(w.out, b.String())
}
