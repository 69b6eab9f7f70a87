package domain

import (
	"encoding/json"
	"time"
)

const (
	// MessageTypeState is the only message type pushed over the relay socket.
	MessageTypeState = "state"
	// SourceExternalAPI marks errors caused by the upstream trading engine.
	SourceExternalAPI = "external_api"
	// HealthStatusOK is reported by the health endpoint.
	HealthStatusOK = "ok"
)

// StateMessage envelope broadcast to every connected socket.
// Data is the upstream payload exactly as received.
type StateMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// NewStateMessage wraps payload into a state message stamped with ts in milliseconds.
func NewStateMessage(payload []byte, ts time.Time) StateMessage {
	return StateMessage{
		Type:      MessageTypeState,
		Data:      json.RawMessage(payload),
		Timestamp: ts.UnixMilli(),
	}
}

// ErrorResponse body returned when the upstream engine cannot be reached.
type ErrorResponse struct {
	Error     string `json:"error"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp"`
}

// HealthResponse body of the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// FormatTimestamp renders ts the way the relay stamps its JSON bodies.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
