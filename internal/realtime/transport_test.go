package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/pkg/retrier"
)

func TestHTTPFetcher(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		status2 string
	}{
		{name: "normalizes body", status: http.StatusOK, body: `{"engine_status":"running"}`, status2: "running"},
		{name: "503 with error body", status: http.StatusServiceUnavailable, body: `{"error":"External API error: 500 Internal Server Error","source":"external_api"}`, wantErr: "External API error: 500 Internal Server Error"},
		{name: "non-2xx without body", status: http.StatusBadGateway, body: ``, wantErr: "API Error: 502 Bad Gateway"},
		{name: "200 with error field", status: http.StatusOK, body: `{"error":"engine warming up"}`, wantErr: "engine warming up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/state", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			state, err := NewHTTPFetcher(srv.URL, time.Second, nil).FetchState(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status2, state.EngineStatus)
		})
	}
}

type scriptedFetcher struct {
	mu     sync.Mutex
	states []domain.ApiState
	errs   []error
	calls  int
}

func (f *scriptedFetcher) FetchState(context.Context) (domain.ApiState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return domain.ApiState{}, f.errs[i]
	}
	if i < len(f.states) {
		return f.states[i], nil
	}
	return f.states[len(f.states)-1], nil
}

func TestPollerRefetch(t *testing.T) {
	fetcher := &scriptedFetcher{
		states: []domain.ApiState{
			{DecisionLog: []domain.DecisionLogEntry{{ID: "d1"}}, TradeHistory: []domain.TradeHistoryEntry{trade("1", domain.StrategyGrokPattern, "BUY")}},
			{},
			{DecisionLog: []domain.DecisionLogEntry{{ID: "d2"}}, TradeHistory: []domain.TradeHistoryEntry{trade("2", domain.StrategyGrokPattern, "SELL")}},
		},
		errs: []error{nil, errors.New("boom"), nil},
	}
	p := NewPoller(fetcher, time.Hour, zap.NewNop())

	assert.True(t, p.Snapshot().Data == nil)

	require.NoError(t, p.Refetch(context.Background()))
	first := p.Snapshot()
	require.NotNil(t, first.Data)
	assert.True(t, first.Connected)

	require.Error(t, p.Refetch(context.Background()))
	failed := p.Snapshot()
	assert.EqualError(t, failed.Err, "boom")
	assert.False(t, failed.Connected)
	assert.Equal(t, first.Data, failed.Data, "data survives an error")

	require.NoError(t, p.Refetch(context.Background()))
	recovered := p.Snapshot()
	assert.NoError(t, recovered.Err)
	assert.Equal(t, "d1", recovered.Data.DecisionLog[0].ID)
	require.Len(t, recovered.Data.TradeHistory, 2)
	assert.Equal(t, "2", recovered.Data.TradeHistory[0].Timestamp)
}

func TestPollerRunFetchesImmediately(t *testing.T) {
	fetcher := &scriptedFetcher{states: []domain.ApiState{{EngineStatus: "running"}}}
	p := NewPoller(fetcher, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	select {
	case <-p.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch")
	}
	assert.Equal(t, "running", p.Snapshot().Data.EngineStatus)
}

// relayStub serves /ws and /api/state like the relay does.
type relayStub struct {
	upgrader websocket.Upgrader
	accept   atomic.Bool
	mu       sync.Mutex
	conns    []*websocket.Conn
}

func (s *relayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/state":
		_, _ = w.Write([]byte(`{"engine_status":"polled"}`))
	case "/ws":
		if !s.accept.Load() {
			http.Error(w, "nope", http.StatusServiceUnavailable)
			return
		}
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		msg, _ := json.Marshal(domain.NewStateMessage([]byte(`{"engine_status":"streamed"}`), time.UnixMilli(1700000000000)))
		_ = conn.WriteMessage(websocket.TextMessage, msg)
	default:
		http.NotFound(w, r)
	}
}

func (s *relayStub) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func fastBackoff() *retrier.Retrier {
	return retrier.New(
		retrier.WithInitialInterval(5*time.Millisecond),
		retrier.WithMaxInterval(20*time.Millisecond),
		retrier.WithJitter(0),
	)
}

func TestWSClientReceivesState(t *testing.T) {
	stub := &relayStub{}
	stub.accept.Store(true)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	wsURL, err := SocketURL(srv.URL)
	require.NoError(t, err)
	c := NewWSClient(wsURL, zap.NewNop(), WithBackoff(fastBackoff()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, func() bool {
		s := c.Snapshot()
		return s.Connected && s.Data != nil
	}, 2*time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, "streamed", snap.Data.EngineStatus)
	assert.Equal(t, int64(1700000000000), snap.LastUpdated.UnixMilli())
	assert.NoError(t, snap.Err)
}

func TestWSClientGivesUpAfterMaxAttempts(t *testing.T) {
	stub := &relayStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	wsURL, err := SocketURL(srv.URL)
	require.NoError(t, err)
	c := NewWSClient(wsURL, zap.NewNop(), WithBackoff(fastBackoff()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return errors.Is(c.Snapshot().Err, ErrMaxReconnectAttempts)
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, c.Snapshot().Connected)

	// a manual reconnect resets the budget
	stub.accept.Store(true)
	c.Reconnect()
	require.Eventually(t, func() bool { return c.Snapshot().Connected }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, c.Snapshot().Err)
}

func TestCoordinatorModes(t *testing.T) {
	stub := &relayStub{}
	stub.accept.Store(true)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	coord, err := NewCoordinator(CoordinatorConfig{
		RelayURL:     srv.URL,
		Preferred:    ModeAuto,
		PollInterval: time.Hour,
		Timeout:      time.Second,
		Backoff:      fastBackoff(),
	}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = coord.Run(ctx) }()

	require.Eventually(t, func() bool {
		v := coord.View()
		return v.Mode == ModeWebSocket && v.Data != nil
	}, 2*time.Second, 5*time.Millisecond)
	view := coord.View()
	assert.True(t, view.Connected)
	assert.False(t, view.Loading)
	assert.False(t, view.ExternalAPI)
	assert.Equal(t, "streamed", view.Data.EngineStatus)

	coord.SetMode(ModePolling)
	require.Eventually(t, func() bool {
		v := coord.View()
		return v.Mode == ModePolling && v.Data != nil && v.Data.EngineStatus == "polled"
	}, 2*time.Second, 5*time.Millisecond)

	// auto falls back to polling when the socket drops and cannot reopen
	coord.SetMode(ModeAuto)
	stub.accept.Store(false)
	stub.dropAll()
	require.Eventually(t, func() bool {
		return coord.View().Mode == ModePolling
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCoordinatorExternalAPI(t *testing.T) {
	stub := &relayStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	coord, err := NewCoordinator(CoordinatorConfig{
		RelayURL:     "http://localhost:5000",
		APIURL:       srv.URL,
		Preferred:    ModeWebSocket,
		PollInterval: time.Hour,
		Timeout:      time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, coord.ws)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = coord.Run(ctx) }()

	require.Eventually(t, func() bool { return coord.View().Data != nil }, 2*time.Second, 5*time.Millisecond)
	view := coord.View()
	assert.Equal(t, ModePolling, view.Mode)
	assert.True(t, view.ExternalAPI)
	assert.Equal(t, "polled", view.Data.EngineStatus)
	assert.NoError(t, coord.Refetch(ctx))
}

func TestNewCoordinatorRejectsBadURL(t *testing.T) {
	_, err := NewCoordinator(CoordinatorConfig{RelayURL: "::"}, zap.NewNop())
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid relay url"))
}

func TestFetchHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/snapshots", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("tail"))
		assert.Equal(t, "300", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			{"index":4,"ts":"2025-10-19T12:00:00Z","data":{"engine_status":"first"}},
			{"index":5,"ts":"2025-10-19T12:00:03Z","data":[1,2]},
			{"index":6,"ts":"2025-10-19T12:00:06Z","data":{"engine_status":"second"}}
		]`))
	}))
	defer srv.Close()

	entries, err := FetchHistory(context.Background(), srv.URL, 300, time.Second, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(4), entries[0].Index)
	assert.Equal(t, "first", entries[0].State.EngineStatus)
	assert.Equal(t, "second", entries[1].State.EngineStatus)
	assert.Equal(t, time.Date(2025, 10, 19, 12, 0, 6, 0, time.UTC), entries[1].CapturedAt.UTC())
}

func TestFetchHistoryUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := FetchHistory(context.Background(), srv.URL, 0, time.Second, nil)
	assert.EqualError(t, err, "API Error: 503 Service Unavailable")
}
