package realtime

import "github.com/vadiminshakov/arena/internal/domain"

// TradeHistoryLimit caps the merged trade history.
const TradeHistoryLimit = 50

// Merge folds a freshly fetched state into the previous one. The first state
// is taken as is. Afterwards the decision log stays frozen at its first value
// and trade history accumulates through MergeTradeHistory.
func Merge(prev *domain.ApiState, next domain.ApiState) domain.ApiState {
	if prev == nil {
		return next
	}

	merged := next
	merged.DecisionLog = prev.DecisionLog
	merged.TradeHistory = MergeTradeHistory(prev.TradeHistory, next.TradeHistory)
	return merged
}

// MergeTradeHistory prepends entries of next whose key is not already known
// and keeps the newest TradeHistoryLimit entries.
func MergeTradeHistory(prev, next []domain.TradeHistoryEntry) []domain.TradeHistoryEntry {
	seen := make(map[string]struct{}, len(prev)+len(next))
	for _, t := range prev {
		seen[t.Key()] = struct{}{}
	}

	out := make([]domain.TradeHistoryEntry, 0, len(prev)+len(next))
	for _, t := range next {
		key := t.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	out = append(out, prev...)

	if len(out) > TradeHistoryLimit {
		out = out[:TradeHistoryLimit]
	}
	return out
}
