package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		preferred   Mode
		connected   bool
		external    bool
		expectation Mode
	}{
		{name: "external forces polling", preferred: ModeWebSocket, connected: true, external: true, expectation: ModePolling},
		{name: "external auto", preferred: ModeAuto, connected: true, external: true, expectation: ModePolling},
		{name: "auto connected", preferred: ModeAuto, connected: true, expectation: ModeWebSocket},
		{name: "auto disconnected", preferred: ModeAuto, connected: false, expectation: ModePolling},
		{name: "websocket even when disconnected", preferred: ModeWebSocket, connected: false, expectation: ModeWebSocket},
		{name: "polling", preferred: ModePolling, connected: true, expectation: ModePolling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectation, Resolve(tt.preferred, tt.connected, tt.external))
		})
	}
}

func TestIsExternalAPI(t *testing.T) {
	assert.False(t, IsExternalAPI("", "localhost:5000"))
	assert.False(t, IsExternalAPI("http://localhost:5000", "localhost:5000"))
	assert.True(t, IsExternalAPI("https://engine.example.com", "localhost:5000"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" WebSocket ")
	require.NoError(t, err)
	assert.Equal(t, ModeWebSocket, m)

	_, err = ParseMode("carrier-pigeon")
	assert.Error(t, err)
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{in: "http://localhost:5000", out: "ws://localhost:5000/ws"},
		{in: "https://arena.example.com/", out: "wss://arena.example.com/ws"},
		{in: "http://host/prefix", out: "ws://host/prefix/ws"},
	}
	for _, tt := range tests {
		got, err := SocketURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.out, got)
	}
}
