package domain

import "fmt"

// StrategyID identifies one agent/strategy pairing run by the trading engine.
type StrategyID string

const (
	StrategyGrokComprehensive   StrategyID = "Grok_Comprehensive"
	StrategyGrokPattern         StrategyID = "Grok_Pattern"
	StrategyGrokIchimoku        StrategyID = "Grok_Ichimoku"
	StrategyOpenAIComprehensive StrategyID = "OpenAI_Comprehensive"
	StrategyOpenAIPattern       StrategyID = "OpenAI_Pattern"
	StrategyGeminiComprehensive StrategyID = "Gemini_Comprehensive"
	StrategyGeminiPattern       StrategyID = "Gemini_Pattern"
)

// StrategyIDs returns every strategy the engine is known to run, in display order.
func StrategyIDs() []StrategyID {
	return []StrategyID{
		StrategyGrokComprehensive,
		StrategyGrokPattern,
		StrategyGrokIchimoku,
		StrategyOpenAIComprehensive,
		StrategyOpenAIPattern,
		StrategyGeminiComprehensive,
		StrategyGeminiPattern,
	}
}

// Known reports whether id belongs to the fixed strategy set.
func (id StrategyID) Known() bool {
	for _, known := range StrategyIDs() {
		if id == known {
			return true
		}
	}
	return false
}

// AgentMetadata describes how a strategy is labelled and coloured on the dashboard.
type AgentMetadata struct {
	ID          StrategyID `json:"id"`
	Name        string     `json:"name"`
	Strategy    string     `json:"strategy"`
	Color       string     `json:"color"`
	BorderClass string     `json:"borderClass"`
	ChartColor  string     `json:"chartColor"`
}

// AgentCatalog is the static metadata for every known strategy.
var AgentCatalog = []AgentMetadata{
	{ID: StrategyGrokComprehensive, Name: "Grok", Strategy: "Comprehensive", Color: "Medium Red", BorderClass: "border-red-700", ChartColor: "#b91c1c"},
	{ID: StrategyGrokPattern, Name: "Grok", Strategy: "Pattern", Color: "Orange", BorderClass: "border-orange-500", ChartColor: "#f97316"},
	{ID: StrategyGrokIchimoku, Name: "Grok", Strategy: "Ichimoku", Color: "Black", BorderClass: "border-gray-900", ChartColor: "#111827"},
	{ID: StrategyOpenAIComprehensive, Name: "OpenAI", Strategy: "Comprehensive", Color: "Medium Green", BorderClass: "border-green-700", ChartColor: "#15803d"},
	{ID: StrategyOpenAIPattern, Name: "OpenAI", Strategy: "Pattern", Color: "Violet", BorderClass: "border-violet-500", ChartColor: "#8b5cf6"},
	{ID: StrategyGeminiComprehensive, Name: "Gemini", Strategy: "Comprehensive", Color: "Medium Blue", BorderClass: "border-blue-700", ChartColor: "#1d4ed8"},
	{ID: StrategyGeminiPattern, Name: "Gemini", Strategy: "Pattern", Color: "Cyan", BorderClass: "border-cyan-500", ChartColor: "#06b6d4"},
}

// MetaFor returns catalogue metadata for id, falling back to the first entry for unknown ids.
func MetaFor(id StrategyID) AgentMetadata {
	for _, meta := range AgentCatalog {
		if meta.ID == id {
			return meta
		}
	}
	return AgentCatalog[0]
}

// NormalizeAgentName maps legacy agent names reported by the engine onto current ones.
// For example: "ChatGPT" becomes "OpenAI".
func NormalizeAgentName(agent string) string {
	if agent == "ChatGPT" {
		return "OpenAI"
	}
	return agent
}

// BuildStrategyID composes an id from separate agent and strategy names.
func BuildStrategyID(agent, strategy string) StrategyID {
	return StrategyID(fmt.Sprintf("%s_%s", NormalizeAgentName(agent), strategy))
}
