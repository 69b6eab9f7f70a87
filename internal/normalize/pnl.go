package normalize

import (
	"sort"

	"github.com/vadiminshakov/arena/internal/domain"
)

// pnlLabelLayout matches the engine's own chart labels, e.g. "Oct 19, 02:05 PM".
const pnlLabelLayout = "Jan 2, 03:04 PM"

func (n *Normalizer) pnlHistory(raw map[string]any) []domain.PnlHistoryPoint {
	if rows, ok := asArray(pnlHistoryKeys.lookup(raw)); ok && len(rows) > 0 {
		return expandPnlRows(rows)
	}
	return n.synthesizePnl(raw)
}

// expandPnlRows flattens wide rows ({timestamp, <strategyId>: value}) into one
// point per strategy. Rows already in long form are taken as they are.
func expandPnlRows(rows []any) []domain.PnlHistoryPoint {
	out := make([]domain.PnlHistoryPoint, 0, len(rows))
	for _, v := range rows {
		row := asObject(v)
		ts := timestampString(timestampKeys.lookup(row))

		if value, ok := row["value"].(float64); ok {
			if id := strategyID(row, strategyIDKeys); id != "" {
				out = append(out, domain.PnlHistoryPoint{Timestamp: ts, Value: value, StrategyID: id})
				continue
			}
		}

		for _, key := range seriesKeys(row) {
			value, ok := row[key].(float64)
			if !ok {
				continue
			}
			out = append(out, domain.PnlHistoryPoint{
				Timestamp:  ts,
				Value:      value,
				StrategyID: domain.StrategyID(key),
			})
		}
	}
	return out
}

// seriesKeys orders the strategy columns of a wide row: catalogue strategies
// first in display order, then anything else alphabetically.
func seriesKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	seen := make(map[string]struct{}, len(row))
	for _, id := range domain.StrategyIDs() {
		if _, ok := row[string(id)]; ok {
			keys = append(keys, string(id))
			seen[string(id)] = struct{}{}
		}
	}

	rest := make([]string, 0, len(row))
	for key := range row {
		if key == "timestamp" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// synthesizePnl yields one point per agent with a positive total value, all
// stamped with the current wall-clock time.
func (n *Normalizer) synthesizePnl(raw map[string]any) []domain.PnlHistoryPoint {
	agents, _ := asArray(agentsKeys.lookup(raw))
	label := n.now().In(n.loc).Format(pnlLabelLayout)

	out := make([]domain.PnlHistoryPoint, 0, len(agents))
	for _, v := range agents {
		agent := asObject(v)
		total := ToNumber(agentTotalKeys.lookup(agent))
		if total <= 0 {
			continue
		}
		out = append(out, domain.PnlHistoryPoint{
			Timestamp: label,
			Value:     total,
			StrategyID: domain.BuildStrategyID(
				stringOr(agentKeys.lookup(agent), ""),
				stringOr(strategyKeys.lookup(agent), ""),
			),
		})
	}
	return out
}
