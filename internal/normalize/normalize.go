// Package normalize maps the trading engine's loosely typed state payload
// onto domain.ApiState.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/arena/internal/domain"
)

const (
	initialCapital  = 10000
	denverZone      = "America/Denver"
	unknownStatus   = "Unknown"
	defaultDecision = "HOLD"
	defaultTrade    = "BUY"
)

// Normalizer converts raw engine payloads. The clock and location are only
// used to label synthesized PnL points.
type Normalizer struct {
	now func() time.Time
	loc *time.Location
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// WithLocation overrides the zone used for synthesized PnL labels.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		n.loc = loc
	}
}

// New creates a Normalizer labelling synthesized points in Mountain time.
func New(opts ...Option) *Normalizer {
	loc, err := time.LoadLocation(denverZone)
	if err != nil {
		loc = time.FixedZone("MST", -7*60*60)
	}

	n := &Normalizer{now: time.Now, loc: loc}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// State normalizes raw with the default Normalizer.
func State(raw map[string]any) domain.ApiState {
	return defaultNormalizer.State(raw)
}

// FromJSON normalizes payload with the default Normalizer.
func FromJSON(payload []byte) (domain.ApiState, error) {
	return defaultNormalizer.FromJSON(payload)
}

// FromJSON decodes payload and normalizes it. It fails only when payload is not a JSON object.
func (n *Normalizer) FromJSON(payload []byte) (domain.ApiState, error) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.ApiState{}, errors.Wrap(err, "decode state payload")
	}
	if raw == nil {
		return domain.ApiState{}, errors.New("state payload is not a JSON object")
	}
	return n.State(raw), nil
}

// State never fails: missing or mistyped fields fall back to zero values and defaults.
func (n *Normalizer) State(raw map[string]any) domain.ApiState {
	if raw == nil {
		raw = map[string]any{}
	}

	return domain.ApiState{
		AgentMetadata:     agentMetadata(raw),
		PnlHistory:        n.pnlHistory(raw),
		LivePositions:     livePositions(raw),
		DecisionLog:       decisionLog(raw),
		TradeHistory:      tradeHistory(raw),
		Leaderboard:       leaderboard(raw),
		AssetMathGrid:     assetMathGrid(raw),
		AggregatePnL:      ToNumber(aggregatePnlKeys.lookup(raw)),
		TotalAccountValue: ToNumber(totalValueKeys.lookup(raw)),
		EngineStatus:      engineStatus(raw),
	}
}

func items(raw map[string]any, keys field) []map[string]any {
	arr, ok := asArray(keys.lookup(raw))
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		out = append(out, asObject(v))
	}
	return out
}

func strategyID(item map[string]any, keys field) domain.StrategyID {
	if v := keys.lookup(item); v != nil {
		return domain.StrategyID(toString(v))
	}
	agent := stringOr(agentKeys.lookup(item), "")
	strategy := stringOr(strategyKeys.lookup(item), "")
	if agent == "" || strategy == "" {
		return ""
	}
	return domain.BuildStrategyID(agent, strategy)
}

func agentMetadata(raw map[string]any) []domain.AgentMetadata {
	rows := items(raw, agentMetadataKeys)
	out := make([]domain.AgentMetadata, 0, len(rows))
	for _, item := range rows {
		out = append(out, domain.AgentMetadata{
			ID:          domain.StrategyID(stringOr(idKeys.lookup(item), "")),
			Name:        stringOr(metaNameKeys.lookup(item), ""),
			Strategy:    stringOr(strategyKeys.lookup(item), ""),
			Color:       stringOr(metaColorKeys.lookup(item), ""),
			BorderClass: stringOr(metaBorderKeys.lookup(item), ""),
			ChartColor:  stringOr(metaChartKeys.lookup(item), ""),
		})
	}
	return out
}

func livePositions(raw map[string]any) []domain.LivePosition {
	rows := items(raw, positionsKeys)
	out := make([]domain.LivePosition, 0, len(rows))
	for i, item := range rows {
		out = append(out, domain.LivePosition{
			ID:             stringOr(idKeys.lookup(item), fmt.Sprintf("pos-%d", i)),
			Asset:          stringOr(assetKeys.lookup(item), ""),
			StrategyID:     strategyID(item, strategyIDKeys),
			Qty:            ToNumber(qtyKeys.lookup(item)),
			EntryPrice:     ToNumber(entryPriceKeys.lookup(item)),
			CurrentPrice:   ToNumber(currentPriceKeys.lookup(item)),
			PnL:            ToNumber(unrealizedKeys.lookup(item)),
			OriginalThesis: stringOr(thesisKeys.lookup(item), ""),
		})
	}
	return out
}

func decisionLog(raw map[string]any) []domain.DecisionLogEntry {
	rows := items(raw, decisionLogKeys)
	out := make([]domain.DecisionLogEntry, 0, len(rows))
	for _, item := range rows {
		entry := domain.DecisionLogEntry{
			Timestamp:  timestampString(timestampKeys.lookup(item)),
			StrategyID: strategyID(item, strategyIDKeys),
			Asset:      stringOr(assetKeys.lookup(item), ""),
			Action:     stringOr(actionKeys.lookup(item), defaultDecision),
			Rationale:  stringOr(rationaleKeys.lookup(item), ""),
		}
		entry.ID = stringOr(idKeys.lookup(item), entry.Key())
		out = append(out, entry)
	}
	return out
}

func tradeHistory(raw map[string]any) []domain.TradeHistoryEntry {
	rows := items(raw, tradeHistoryKeys)
	out := make([]domain.TradeHistoryEntry, 0, len(rows))
	for _, item := range rows {
		entry := domain.TradeHistoryEntry{
			Timestamp:   timestampString(timestampKeys.lookup(item)),
			StrategyID:  strategyID(item, strategyIDKeys),
			Asset:       stringOr(assetKeys.lookup(item), ""),
			Action:      strings.ToUpper(stringOr(actionKeys.lookup(item), defaultTrade)),
			Qty:         ToNumber(qtyKeys.lookup(item)),
			Price:       ToNumber(tradePriceKeys.lookup(item)),
			RealizedPnL: ToNumber(realizedPnlKeys.lookup(item)),
		}
		entry.ID = stringOr(idKeys.lookup(item), entry.Key())
		out = append(out, entry)
	}
	return out
}

func leaderboard(raw map[string]any) []domain.LeaderboardEntry {
	rows := items(raw, leaderboardKeys)
	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, item := range rows {
		rank := toInt(rankKeys.lookup(item))
		if rank == 0 {
			rank = i + 1
		}

		accountValue := ToNumber(accountValueKeys.lookup(item))
		entry := domain.LeaderboardEntry{
			Rank:          rank,
			StrategyID:    strategyID(item, leaderboardIDKeys),
			AccountValue:  accountValue,
			PercentReturn: ToNumber(percentReturnKeys.lookup(item)),
			TotalPnL:      totalPnL(accountValue),
			Cash:          ToNumber(cashKeys.lookup(item)),
			TotalTrades:   toInt(totalTradesKeys.lookup(item)),
			Buys:          toInt(buysKeys.lookup(item)),
			Sells:         toInt(sellsKeys.lookup(item)),
			ActiveHolds:   toInt(holdsKeys.lookup(item)),
		}
		if v, ok := winRateKeys.present(item); ok {
			winRate := ToNumber(v)
			entry.WinRate = &winRate
		}
		out = append(out, entry)
	}
	return out
}

// totalPnL is measured against the fixed starting capital of every strategy.
func totalPnL(accountValue float64) float64 {
	if accountValue == 0 {
		return 0
	}
	return decimal.NewFromFloat(accountValue).
		Sub(decimal.NewFromInt(initialCapital)).
		InexactFloat64()
}

func assetMathGrid(raw map[string]any) []domain.AssetMathSignal {
	rows := items(raw, assetGridKeys)
	out := make([]domain.AssetMathSignal, 0, len(rows))
	for _, item := range rows {
		out = append(out, domain.AssetMathSignal{
			Asset:    stringOr(assetKeys.lookup(item), ""),
			Price:    ToNumber(signalPriceKeys.lookup(item)),
			ZScore:   ToNumber(zScoreKeys.lookup(item)),
			Slope:    ToNumber(slopeKeys.lookup(item)),
			VwapDist: ToNumber(vwapDistKeys.lookup(item)),
		})
	}
	return out
}

func engineStatus(raw map[string]any) string {
	if v := engineStatusKeys.lookup(raw); v != nil {
		return toString(v)
	}
	if system, ok := systemStatusKeys.lookup(raw).(map[string]any); ok {
		if v := statusKeys.lookup(system); v != nil {
			return toString(v)
		}
	}
	return unknownStatus
}
