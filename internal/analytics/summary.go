// Package analytics derives per-strategy performance figures from a state.
package analytics

import (
	"math"
	"sort"
	"strconv"

	"github.com/vadiminshakov/arena/internal/domain"
)

// EquityPoint is one sample of a strategy's account value.
type EquityPoint struct {
	Timestamp string
	Value     float64
}

// StrategySummary is the detail view of one strategy.
type StrategySummary struct {
	StrategyID  domain.StrategyID
	Meta        domain.AgentMetadata
	Leaderboard domain.LeaderboardEntry
	Positions   []domain.LivePosition
	Decisions   []domain.DecisionLogEntry
	Equity      []EquityPoint

	CurrentValue  float64
	StartValue    float64
	MaxValue      float64
	MinValue      float64
	DrawdownPct   float64
	VolatilityPct float64
	TotalReturn   float64
	TotalPnL      float64

	// Trend figures over the equity curve, nil until enough samples exist.
	EquityEMA *float64
	EquityRSI *float64
}

// Summarize builds the summary for id. It reports false when the strategy has
// no leaderboard entry or no equity samples.
func Summarize(state domain.ApiState, id domain.StrategyID) (StrategySummary, bool) {
	entry, ok := findEntry(state.Leaderboard, id)
	if !ok {
		return StrategySummary{}, false
	}

	equity := equityCurve(state.PnlHistory, id)
	if len(equity) == 0 {
		return StrategySummary{}, false
	}

	values := make([]float64, len(equity))
	for i, p := range equity {
		values[i] = p.Value
	}

	s := StrategySummary{
		StrategyID:    id,
		Meta:          domain.MetaFor(id),
		Leaderboard:   entry,
		Positions:     positionsFor(state.LivePositions, id),
		Decisions:     decisionsFor(state.DecisionLog, id),
		Equity:        equity,
		CurrentValue:  values[len(values)-1],
		StartValue:    values[0],
		MaxValue:      maxOf(values),
		MinValue:      minOf(values),
		VolatilityPct: Volatility(values),
		TotalReturn:   entry.PercentReturn,
		TotalPnL:      entry.TotalPnL,
		EquityEMA:     latestEMA(values),
		EquityRSI:     latestRSI(values),
	}
	s.DrawdownPct = Drawdown(s.MaxValue, s.CurrentValue)

	return s, true
}

// Drawdown is the percentage drop of current from peak.
func Drawdown(peak, current float64) float64 {
	if peak == 0 {
		return 0
	}
	return (peak - current) / peak * 100
}

// Volatility is the root mean square of simple returns, in percent,
// averaged over len(values)-1 returns.
func Volatility(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			continue
		}
		r := (values[i] - prev) / prev
		sum += r * r
	}
	return math.Sqrt(sum/float64(len(values)-1)) * 100
}

func findEntry(entries []domain.LeaderboardEntry, id domain.StrategyID) (domain.LeaderboardEntry, bool) {
	for _, e := range entries {
		if e.StrategyID == id {
			return e, true
		}
	}
	return domain.LeaderboardEntry{}, false
}

// equityCurve filters the series for id and orders it by time when every
// timestamp is numeric. Label timestamps keep their upstream order.
func equityCurve(history []domain.PnlHistoryPoint, id domain.StrategyID) []EquityPoint {
	var out []EquityPoint
	numeric := true
	for _, p := range history {
		if p.StrategyID != id {
			continue
		}
		if _, err := strconv.ParseFloat(p.Timestamp, 64); err != nil {
			numeric = false
		}
		out = append(out, EquityPoint{Timestamp: p.Timestamp, Value: p.Value})
	}

	if numeric {
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := strconv.ParseFloat(out[i].Timestamp, 64)
			b, _ := strconv.ParseFloat(out[j].Timestamp, 64)
			return a < b
		})
	}
	return out
}

func positionsFor(positions []domain.LivePosition, id domain.StrategyID) []domain.LivePosition {
	var out []domain.LivePosition
	for _, p := range positions {
		if p.StrategyID == id {
			out = append(out, p)
		}
	}
	return out
}

func decisionsFor(decisions []domain.DecisionLogEntry, id domain.StrategyID) []domain.DecisionLogEntry {
	var out []domain.DecisionLogEntry
	for _, d := range decisions {
		if d.StrategyID == id {
			out = append(out, d)
		}
	}
	return out
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Max(m, v)
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		m = math.Min(m, v)
	}
	return m
}
