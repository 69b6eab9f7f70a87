package render

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/arena/internal/analytics"
	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/playback"
	"github.com/vadiminshakov/arena/internal/realtime"
)

func TestFormatTime(t *testing.T) {
	denver := time.FixedZone("MST", -7*3600)

	tests := []struct {
		name string
		ts   string
		want string
	}{
		{name: "seconds", ts: "1700000000", want: "11/14 3:13 PM"},
		{name: "milliseconds", ts: "1700000000000", want: "11/14 3:13 PM"},
		{name: "rfc3339", ts: "2025-10-19T20:05:00Z", want: "10/19 1:05 PM"},
		{name: "mst suffix", ts: "2025-10-19 09:30:00 MST", want: "10/19 9:30 AM"},
		{name: "mdt suffix", ts: "2025-10-19 21:30:00 MDT", want: "10/19 9:30 PM"},
		{name: "label", ts: "Oct 19, 02:05 PM", want: "10/19 2:05 PM"},
		{name: "unparseable", ts: "yesterday", want: "yesterday"},
		{name: "empty", ts: "", want: ""},
		{name: "zero", ts: "0", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTime(tt.ts, denver))
		})
	}

	assert.Equal(t, "11/14 3:13:20 PM", FormatTimeWithSeconds("1700000000", denver))
}

func TestMoneyAndPercent(t *testing.T) {
	assert.Equal(t, "$10,500.00", Money(10500))
	assert.Equal(t, "$999.50", Money(999.5))
	assert.Equal(t, "-$1,234,567.89", Money(-1234567.891))
	assert.Equal(t, "$0.00", Money(0))

	assert.Equal(t, "+5.00%", Percent(5))
	assert.Equal(t, "-2.50%", Percent(-2.5))
	assert.Equal(t, "0.00%", Percent(0))
}

func TestHeader(t *testing.T) {
	r := New(time.UTC)

	out := r.Header(realtime.View{Mode: realtime.ModeWebSocket, Connected: true, LastUpdated: time.Date(2025, 10, 19, 14, 5, 9, 0, time.UTC)}, "running")
	assert.Contains(t, out, "engine: running")
	assert.Contains(t, out, "mode: websocket")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "updated 10/19 2:05:09 PM")

	out = r.Header(realtime.View{Mode: realtime.ModePolling, ExternalAPI: true}, "Unknown")
	assert.Contains(t, out, "disconnected")
	assert.Contains(t, out, "updated never")
	assert.Contains(t, out, "external api")
}

func TestStatusLine(t *testing.T) {
	r := New(time.UTC)
	assert.Contains(t, r.Status(realtime.View{Loading: true}), "loading")
	assert.Contains(t, r.Status(realtime.View{Err: errors.New("External API error: 502 Bad Gateway")}), "502 Bad Gateway")
	assert.Empty(t, r.Status(realtime.View{}))
}

func TestTables(t *testing.T) {
	r := New(time.UTC)
	win := 66.666

	lb := r.Leaderboard([]domain.LeaderboardEntry{
		{Rank: 1, StrategyID: domain.StrategyGrokIchimoku, AccountValue: 10500, PercentReturn: 5, TotalPnL: 500, TotalTrades: 3, WinRate: &win},
		{Rank: 2, StrategyID: domain.StrategyOpenAIPattern, AccountValue: 9000, PercentReturn: -10, TotalPnL: -1000},
	})
	assert.Contains(t, lb, "LEADERBOARD")
	assert.Contains(t, lb, "Ichimoku")
	assert.Contains(t, lb, "$10,500.00")
	assert.Contains(t, lb, "66.7%")
	assert.Contains(t, lb, "-$1,000.00")

	pos := r.Positions([]domain.LivePosition{{Asset: "BTC", StrategyID: domain.StrategyGeminiPattern, Qty: 0.25, EntryPrice: 60000, CurrentPrice: 61000, PnL: 250}})
	assert.Contains(t, pos, "BTC")
	assert.Contains(t, pos, "Gemini Pattern")
	assert.Contains(t, pos, "0.25")

	assert.Contains(t, r.Positions(nil), "no open positions")
}

func TestDecisionsLimit(t *testing.T) {
	r := New(time.UTC)
	out := r.Decisions([]domain.DecisionLogEntry{
		{Timestamp: "1700000000", StrategyID: domain.StrategyGrokPattern, Action: "BUY", Asset: "SOL", Rationale: "first"},
		{Timestamp: "1700000001", StrategyID: domain.StrategyGrokPattern, Action: "HOLD", Asset: "SOL", Rationale: "second"},
	}, 1)
	assert.Contains(t, out, "11/14 10:13 PM")
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "second")
}

func TestPlaybackLine(t *testing.T) {
	r := New(time.UTC)
	at := playback.Snapshot{Timestamp: time.Date(2025, 10, 19, 14, 0, 0, 0, time.UTC)}

	assert.Contains(t, r.Playback(playback.Status{}, playback.Snapshot{}), "no snapshots")
	assert.Equal(t, "playback: live  3/3  1x  at 2:00:00 PM", r.Playback(playback.Status{Index: 2, Len: 3, Live: true, Speed: 1}, at))
	assert.Equal(t, "playback: playing  1/3  2.5x  at 2:00:00 PM", r.Playback(playback.Status{Index: 0, Len: 3, Playing: true, Speed: 2.5}, at))
}

func TestSummaryAndDashboard(t *testing.T) {
	r := New(time.UTC)
	rsi := 55.0
	out := r.Summary(analytics.StrategySummary{
		Meta:         domain.MetaFor(domain.StrategyGrokPattern),
		CurrentValue: 9000, StartValue: 10000, MaxValue: 12000, MinValue: 9000,
		DrawdownPct: 25, VolatilityPct: 22.64, EquityRSI: &rsi,
	})
	assert.Contains(t, out, "GROK PATTERN")
	assert.Contains(t, out, "drawdown 25.00%")
	assert.Contains(t, out, "equity rsi 55.0")
	assert.NotContains(t, out, "equity ema")

	state := &domain.ApiState{EngineStatus: "running", TotalAccountValue: 20000, AggregatePnL: -50}
	dash := r.Dashboard(realtime.View{Mode: realtime.ModePolling, Connected: true}, state, playback.Status{}, playback.Snapshot{})
	assert.Contains(t, dash, "engine: running")
	assert.Contains(t, dash, "total value $20,000.00")
	assert.Contains(t, dash, "-$50.00")

	empty := r.Dashboard(realtime.View{Loading: true}, nil, playback.Status{}, playback.Snapshot{})
	assert.Contains(t, empty, "engine: Unknown")
	assert.NotContains(t, empty, "LEADERBOARD")
}
