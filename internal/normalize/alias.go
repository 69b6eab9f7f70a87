package normalize

import "math"

// field lists the keys a logical value may arrive under, most preferred first.
type field []string

// lookup returns the first candidate holding a truthy value, or nil.
func (f field) lookup(item map[string]any) any {
	for _, key := range f {
		if v, ok := item[key]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

// present returns the value of the first candidate key that exists at all,
// including explicit nulls and zeros.
func (f field) present(item map[string]any) (any, bool) {
	for _, key := range f {
		if v, ok := item[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// truthy treats zero numbers, empty strings, false and null as absent.
// Objects and arrays count as present even when empty.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func asArray(v any) ([]any, bool) {
	arr, ok := v.([]any)
	return arr, ok
}

var (
	agentMetadataKeys = field{"agentMetadata", "agent_metadata"}
	pnlHistoryKeys    = field{"pnlHistory", "pnl_history"}
	positionsKeys     = field{"livePositions", "live_positions", "positions"}
	decisionLogKeys   = field{"decisionLog", "decision_log", "decisions", "activity_logs"}
	tradeHistoryKeys  = field{"tradeHistory", "trade_history", "trades", "recent_trades"}
	leaderboardKeys   = field{"leaderboard", "strategy_performance"}
	assetGridKeys     = field{"assetMathGrid", "asset_math_grid", "assets"}
	aggregatePnlKeys  = field{"aggregatePnl", "aggregate_pnl"}
	totalValueKeys    = field{"totalAccountValue", "total_account_value"}
	engineStatusKeys  = field{"engineStatus", "engine_status"}
	agentsKeys        = field{"agents"}

	strategyIDKeys = field{"strategyId", "strategy_id"}
	idKeys         = field{"id"}
	agentKeys      = field{"agent"}
	strategyKeys   = field{"strategy"}
	timestampKeys  = field{"timestamp"}
	assetKeys      = field{"asset", "symbol"}
	qtyKeys        = field{"qty", "quantity", "size"}
	actionKeys     = field{"action"}

	entryPriceKeys   = field{"entryPrice", "entry_price"}
	currentPriceKeys = field{"currentPrice", "current_price"}
	unrealizedKeys   = field{"pnl", "unrealized_pnl"}
	thesisKeys       = field{"originalThesis", "original_thesis", "thesis"}

	rationaleKeys   = field{"rationale", "reasoning"}
	tradePriceKeys  = field{"price", "entry_price"}
	realizedPnlKeys = field{"realizedPnl", "realized_pnl", "pnl"}

	leaderboardIDKeys = field{"strategy_id", "strategyId"}
	rankKeys          = field{"rank"}
	accountValueKeys  = field{"total_value", "accountValue", "account_value"}
	percentReturnKeys = field{"return_pct", "percentReturn", "percent_return"}
	cashKeys          = field{"cash_balance", "cash"}
	totalTradesKeys   = field{"trades", "total_trades", "totalTrades"}
	buysKeys          = field{"buys"}
	sellsKeys         = field{"sells", "closes"}
	holdsKeys         = field{"holds", "activeHolds", "active_holds"}
	winRateKeys       = field{"win_rate", "winRate"}

	metaNameKeys     = field{"name"}
	metaColorKeys    = field{"color"}
	metaBorderKeys   = field{"borderClass", "border_class"}
	metaChartKeys    = field{"chartColor", "chart_color"}
	agentTotalKeys   = field{"total_value"}
	systemStatusKeys = field{"system_status"}
	statusKeys       = field{"status"}

	signalPriceKeys = field{"price"}
	zScoreKeys      = field{"zScore", "z_score"}
	slopeKeys       = field{"slope"}
	vwapDistKeys    = field{"vwapDist", "vwap_dist", "vwap_distance"}
)
