// Package render draws the terminal dashboard.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vadiminshakov/arena/internal/analytics"
	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/playback"
	"github.com/vadiminshakov/arena/internal/realtime"
)

var (
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warning   = lipgloss.AdaptiveColor{Light: "#D9534F", Dark: "#FF6B6B"}
	subtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(0, 2).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().Foreground(special).Bold(true).MarginTop(1)
	okStyle      = lipgloss.NewStyle().Foreground(special)
	errStyle     = lipgloss.NewStyle().Foreground(warning)
	dimStyle     = lipgloss.NewStyle().Foreground(subtle)
)

// Renderer formats dashboard sections for one time zone.
type Renderer struct {
	loc *time.Location
}

// New creates a renderer showing times in loc (local time when nil).
func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc}
}

// Header shows engine status, transport and freshness.
func (r *Renderer) Header(v realtime.View, engineStatus string) string {
	conn := okStyle.Render("● connected")
	if !v.Connected {
		conn = errStyle.Render("○ disconnected")
	}

	updated := "never"
	if !v.LastUpdated.IsZero() {
		updated = v.LastUpdated.In(r.loc).Format("1/2 3:04:05 PM")
	}

	parts := []string{
		titleStyle.Render("ARENA"),
		"engine: " + engineStatus,
		"mode: " + string(v.Mode),
		conn,
		dimStyle.Render("updated " + updated),
	}
	if v.ExternalAPI {
		parts = append(parts, dimStyle.Render("external api"))
	}
	return strings.Join(parts, "  ")
}

// Status renders a loading or error line, empty when data is fine.
func (r *Renderer) Status(v realtime.View) string {
	switch {
	case v.Loading:
		return dimStyle.Render("loading...")
	case v.Err != nil:
		return errStyle.Render("error: " + v.Err.Error())
	}
	return ""
}

// Playback shows the player position.
func (r *Renderer) Playback(s playback.Status, current playback.Snapshot) string {
	if s.Len == 0 {
		return dimStyle.Render("playback: no snapshots")
	}
	state := "paused"
	switch {
	case s.Live:
		state = "live"
	case s.Playing:
		state = "playing"
	}
	return fmt.Sprintf("playback: %s  %d/%d  %sx  at %s",
		state, s.Index+1, s.Len, strconv.FormatFloat(s.Speed, 'f', -1, 64),
		current.Timestamp.In(r.loc).Format("3:04:05 PM"))
}

// Totals shows aggregate account figures.
func (r *Renderer) Totals(state domain.ApiState) string {
	pnl := Money(state.AggregatePnL)
	if state.AggregatePnL < 0 {
		pnl = errStyle.Render(pnl)
	} else {
		pnl = okStyle.Render(pnl)
	}
	return fmt.Sprintf("total value %s  aggregate pnl %s", Money(state.TotalAccountValue), pnl)
}

// Leaderboard renders the standings table.
func (r *Renderer) Leaderboard(entries []domain.LeaderboardEntry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Agent", "Strategy", "Value", "Return", "PnL", "Trades", "Win")
	for _, e := range entries {
		meta := domain.MetaFor(e.StrategyID)
		win := "-"
		if e.WinRate != nil {
			win = strconv.FormatFloat(*e.WinRate, 'f', 1, 64) + "%"
		}
		t.Row(strconv.Itoa(e.Rank), meta.Name, meta.Strategy, Money(e.AccountValue),
			Percent(e.PercentReturn), Money(e.TotalPnL), strconv.Itoa(e.TotalTrades), win)
	}
	return sectionStyle.Render("LEADERBOARD") + "\n" + t.Render()
}

// Positions renders open positions.
func (r *Renderer) Positions(positions []domain.LivePosition) string {
	if len(positions) == 0 {
		return sectionStyle.Render("POSITIONS") + "\n" + dimStyle.Render("no open positions")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Asset", "Agent", "Qty", "Entry", "Current", "PnL")
	for _, p := range positions {
		meta := domain.MetaFor(p.StrategyID)
		t.Row(p.Asset, meta.Name+" "+meta.Strategy, strconv.FormatFloat(p.Qty, 'f', -1, 64),
			Money(p.EntryPrice), Money(p.CurrentPrice), Money(p.PnL))
	}
	return sectionStyle.Render("POSITIONS") + "\n" + t.Render()
}

// Decisions renders the most recent rationale entries.
func (r *Renderer) Decisions(entries []domain.DecisionLogEntry, limit int) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render("DECISIONS"))
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for _, d := range entries {
		meta := domain.MetaFor(d.StrategyID)
		fmt.Fprintf(&b, "\n%s  %s %s  %s %s  %s",
			dimStyle.Render(FormatTime(d.Timestamp, r.loc)), meta.Name, meta.Strategy, d.Action, d.Asset, d.Rationale)
	}
	return b.String()
}

// Summary renders one strategy's detail figures.
func (r *Renderer) Summary(s analytics.StrategySummary) string {
	lines := []string{
		sectionStyle.Render(strings.ToUpper(s.Meta.Name + " " + s.Meta.Strategy)),
		fmt.Sprintf("value %s (start %s, high %s, low %s)", Money(s.CurrentValue), Money(s.StartValue), Money(s.MaxValue), Money(s.MinValue)),
		fmt.Sprintf("return %s  pnl %s", Percent(s.TotalReturn), Money(s.TotalPnL)),
		fmt.Sprintf("drawdown %.2f%%  volatility %.2f%%", s.DrawdownPct, s.VolatilityPct),
	}
	if s.EquityEMA != nil {
		lines = append(lines, "equity ema "+Money(*s.EquityEMA))
	}
	if s.EquityRSI != nil {
		lines = append(lines, fmt.Sprintf("equity rsi %.1f", *s.EquityRSI))
	}
	lines = append(lines, fmt.Sprintf("%d open positions, %d decisions", len(s.Positions), len(s.Decisions)))
	return strings.Join(lines, "\n")
}

// Dashboard composes every section for state.
func (r *Renderer) Dashboard(v realtime.View, state *domain.ApiState, s playback.Status, current playback.Snapshot) string {
	engine := "Unknown"
	if state != nil {
		engine = state.EngineStatus
	}

	sections := []string{r.Header(v, engine)}
	if line := r.Status(v); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, r.Playback(s, current))
	if state != nil {
		sections = append(sections,
			r.Totals(*state),
			r.Leaderboard(state.Leaderboard),
			r.Positions(state.LivePositions),
			r.Decisions(state.DecisionLog, 5),
		)
	}
	return strings.Join(sections, "\n")
}
