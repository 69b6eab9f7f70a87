// Package export writes dashboard datasets as CSV or JSON files.
package export

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/arena/internal/domain"
)

// Dataset names one exportable table of the dashboard.
type Dataset string

const (
	DatasetPositions   Dataset = "positions"
	DatasetRationale   Dataset = "rationale"
	DatasetHistory     Dataset = "history"
	DatasetLeaderboard Dataset = "leaderboard"
)

// Format is the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseDataset validates a dataset name.
func ParseDataset(s string) (Dataset, error) {
	switch d := Dataset(strings.ToLower(s)); d {
	case DatasetPositions, DatasetRationale, DatasetHistory, DatasetLeaderboard:
		return d, nil
	}
	return "", errors.Errorf("unknown dataset %q", s)
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", errors.Errorf("unknown format %q", s)
}

var filePrefixes = map[Dataset]string{
	DatasetPositions:   "positions",
	DatasetRationale:   "trade_rationale",
	DatasetHistory:     "trade_history",
	DatasetLeaderboard: "strategy_performance",
}

// FileName is <prefix>_<YYYY-MM-DD>.<ext>, dated in UTC.
func FileName(d Dataset, f Format, now time.Time) string {
	return filePrefixes[d] + "_" + now.UTC().Format("2006-01-02") + "." + string(f)
}

// Table is a dataset ready to be encoded.
type Table struct {
	Headers []string
	Rows    [][]any
	// Records is what the JSON encoding writes.
	Records any
}

// Len is the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Build extracts d from state.
func Build(state domain.ApiState, d Dataset) (Table, error) {
	switch d {
	case DatasetPositions:
		return positionsTable(state.LivePositions), nil
	case DatasetRationale:
		return rationaleTable(state.DecisionLog), nil
	case DatasetHistory:
		return historyTable(state.TradeHistory), nil
	case DatasetLeaderboard:
		return leaderboardTable(state.Leaderboard), nil
	}
	return Table{}, errors.Errorf("unknown dataset %q", d)
}

func positionsTable(positions []domain.LivePosition) Table {
	t := Table{
		Headers: []string{"Asset", "Strategy", "Type", "Quantity", "Entry Price", "Current Price", "PnL", "Thesis"},
		Records: positions,
	}
	for _, p := range positions {
		meta := domain.MetaFor(p.StrategyID)
		t.Rows = append(t.Rows, []any{p.Asset, meta.Name, meta.Strategy, p.Qty, p.EntryPrice, p.CurrentPrice, p.PnL, p.OriginalThesis})
	}
	return t
}

func rationaleTable(decisions []domain.DecisionLogEntry) Table {
	t := Table{
		Headers: []string{"Timestamp", "Strategy", "Type", "Rationale"},
		Records: decisions,
	}
	for _, d := range decisions {
		meta := domain.MetaFor(d.StrategyID)
		t.Rows = append(t.Rows, []any{isoTime(d.Timestamp), meta.Name, meta.Strategy, d.Rationale})
	}
	return t
}

func historyTable(trades []domain.TradeHistoryEntry) Table {
	t := Table{
		Headers: []string{"Timestamp", "Strategy", "Type", "Asset", "Action", "Quantity", "Price", "Realized PnL"},
		Records: trades,
	}
	for _, tr := range trades {
		meta := domain.MetaFor(tr.StrategyID)
		t.Rows = append(t.Rows, []any{isoTime(tr.Timestamp), meta.Name, meta.Strategy, tr.Asset, tr.Action, tr.Qty, tr.Price, tr.RealizedPnL})
	}
	return t
}

func leaderboardTable(entries []domain.LeaderboardEntry) Table {
	t := Table{
		Headers: []string{"Agent / Strategy", "Cash Balance", "Total Value", "Return %", "Trades", "Buys", "Sells", "Holds"},
		Records: entries,
	}
	for _, e := range entries {
		meta := domain.MetaFor(e.StrategyID)
		t.Rows = append(t.Rows, []any{meta.Name, e.Cash, e.AccountValue, e.PercentReturn, e.TotalTrades, e.Buys, e.Sells, e.ActiveHolds})
	}
	return t
}

// isoTime renders epoch seconds as an ISO-8601 UTC instant. Other strings pass through.
func isoTime(ts string) string {
	secs, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return ts
	}
	return domain.FormatTimestamp(time.UnixMilli(int64(secs * 1000)))
}

// CSV encodes t with a header row. Only string values holding a comma, quote
// or newline are quoted.
func CSV(t Table) []byte {
	var buf bytes.Buffer
	buf.WriteString(strings.Join(t.Headers, ","))
	for _, row := range t.Rows {
		buf.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(csvValue(v))
		}
	}
	return buf.Bytes()
}

func csvValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if strings.ContainsAny(val, ",\"\n") {
			return `"` + strings.ReplaceAll(val, `"`, `""`) + `"`
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}

// JSON encodes t's records as an indented array.
func JSON(t Table) ([]byte, error) {
	b, err := json.MarshalIndent(t.Records, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "encode json export")
	}
	return b, nil
}
