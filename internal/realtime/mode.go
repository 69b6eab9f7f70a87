// Package realtime keeps a dashboard client in sync with the relay over
// HTTP polling or the relay WebSocket.
package realtime

import (
	"fmt"
	"strings"
)

// Mode selects the transport feeding the dashboard.
type Mode string

const (
	ModePolling   Mode = "polling"
	ModeWebSocket Mode = "websocket"
	ModeAuto      Mode = "auto"
)

// ParseMode validates a user supplied mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePolling, ModeWebSocket, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("unknown connection mode %q (want polling, websocket or auto)", s)
	}
}

// Resolve returns the transport actually used for the preferred mode.
// External APIs are always polled; auto prefers the socket while it is connected.
func Resolve(preferred Mode, wsConnected, externalAPI bool) Mode {
	if externalAPI {
		return ModePolling
	}
	switch preferred {
	case ModeAuto:
		if wsConnected {
			return ModeWebSocket
		}
		return ModePolling
	case ModeWebSocket:
		return ModeWebSocket
	default:
		return ModePolling
	}
}

// IsExternalAPI reports whether apiBase points somewhere other than ownHost.
// The relay socket is only used when talking to our own host.
func IsExternalAPI(apiBase, ownHost string) bool {
	return apiBase != "" && !strings.Contains(apiBase, ownHost)
}
