// Package domain defines the dashboard's view of the trading engine state.
package domain

import "fmt"

// PnlHistoryPoint one equity sample of a strategy.
type PnlHistoryPoint struct {
	Timestamp  string     `json:"timestamp"`
	Value      float64    `json:"value"`
	StrategyID StrategyID `json:"strategyId"`
}

// LivePosition open trade held by a strategy.
type LivePosition struct {
	ID             string     `json:"id"`
	Asset          string     `json:"asset"`
	StrategyID     StrategyID `json:"strategyId"`
	Qty            float64    `json:"qty"`
	EntryPrice     float64    `json:"entryPrice"`
	CurrentPrice   float64    `json:"currentPrice"`
	PnL            float64    `json:"pnl"`
	OriginalThesis string     `json:"originalThesis"`
}

// DecisionLogEntry rationale recorded by a strategy for one decision.
type DecisionLogEntry struct {
	ID         string     `json:"id"`
	Timestamp  string     `json:"timestamp"`
	StrategyID StrategyID `json:"strategyId"`
	Asset      string     `json:"asset"`
	Action     string     `json:"action"`
	Rationale  string     `json:"rationale"`
}

// Key identifies the entry independently of the id assigned upstream.
func (e DecisionLogEntry) Key() string {
	return fmt.Sprintf("%s-%s", e.Timestamp, e.StrategyID)
}

// TradeHistoryEntry executed trade.
type TradeHistoryEntry struct {
	ID          string     `json:"id"`
	Timestamp   string     `json:"timestamp"`
	StrategyID  StrategyID `json:"strategyId"`
	Asset       string     `json:"asset"`
	Action      string     `json:"action"`
	Qty         float64    `json:"qty"`
	Price       float64    `json:"price"`
	RealizedPnL float64    `json:"realizedPnl"`
}

// Key is the dedupe key used when trade history batches are merged.
func (e TradeHistoryEntry) Key() string {
	return fmt.Sprintf("%s-%s-%s", e.Timestamp, e.StrategyID, e.Action)
}

// LeaderboardEntry standings of one strategy.
type LeaderboardEntry struct {
	Rank          int        `json:"rank"`
	StrategyID    StrategyID `json:"strategyId"`
	AccountValue  float64    `json:"accountValue"`
	PercentReturn float64    `json:"percentReturn"`
	TotalPnL      float64    `json:"totalPnl"`
	Cash          float64    `json:"cash"`
	TotalTrades   int        `json:"totalTrades"`
	Buys          int        `json:"buys"`
	Sells         int        `json:"sells"`
	ActiveHolds   int        `json:"activeHolds"`
	WinRate       *float64   `json:"winRate,omitempty"`
}

// AssetMathSignal quantitative signals computed by the engine for one asset.
type AssetMathSignal struct {
	Asset    string  `json:"asset"`
	Price    float64 `json:"price"`
	ZScore   float64 `json:"zScore"`
	Slope    float64 `json:"slope"`
	VwapDist float64 `json:"vwapDist"`
}

// ApiState full snapshot of the trading engine as shown by the dashboard.
type ApiState struct {
	AgentMetadata     []AgentMetadata     `json:"agentMetadata"`
	PnlHistory        []PnlHistoryPoint   `json:"pnlHistory"`
	LivePositions     []LivePosition      `json:"livePositions"`
	DecisionLog       []DecisionLogEntry  `json:"decisionLog"`
	TradeHistory      []TradeHistoryEntry `json:"tradeHistory"`
	Leaderboard       []LeaderboardEntry  `json:"leaderboard"`
	AssetMathGrid     []AssetMathSignal   `json:"assetMathGrid"`
	AggregatePnL      float64             `json:"aggregatePnl"`
	TotalAccountValue float64             `json:"totalAccountValue"`
	EngineStatus      string              `json:"engineStatus"`
}
