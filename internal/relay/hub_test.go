package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arena/internal/domain"
)

type fakeFetcher struct {
	mu    sync.Mutex
	body  string
	err   error
	calls int32
}

func (f *fakeFetcher) Fetch(context.Context) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func (f *fakeFetcher) set(body string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body, f.err = body, err
}

type memJournal struct {
	mu       sync.Mutex
	payloads []string
}

func (j *memJournal) Save(_ time.Time, payload []byte) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.payloads = append(j.payloads, string(payload))
	return uint64(len(j.payloads)), nil
}

func startHub(t *testing.T, fetcher *fakeFetcher) (*Hub, string) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(hub.Handler(fetcher))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readState(t *testing.T, conn *websocket.Conn) domain.StateMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg domain.StateMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubSendsInitialStateBeforeBroadcasts(t *testing.T) {
	fetcher := &fakeFetcher{body: `{"engine_status":"running"}`}
	hub, url := startHub(t, fetcher)

	conn := dial(t, url)
	initial := readState(t, conn)
	assert.Equal(t, domain.MessageTypeState, initial.Type)
	assert.JSONEq(t, `{"engine_status":"running"}`, string(initial.Data))
	assert.NotZero(t, initial.Timestamp)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	fetcher.set(`{"engine_status":"paused"}`, nil)
	b := NewBroadcaster(hub, fetcher, time.Hour, zap.NewNop())
	assert.Equal(t, 1, b.Tick(context.Background()))

	next := readState(t, conn)
	assert.JSONEq(t, `{"engine_status":"paused"}`, string(next.Data))
}

func TestHubSkipsInitialStateOnFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("down")}
	hub, url := startHub(t, fetcher)

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	fetcher.set(`{"n":1}`, nil)
	b := NewBroadcaster(hub, fetcher, time.Hour, zap.NewNop())
	require.Equal(t, 1, b.Tick(context.Background()))

	first := readState(t, conn)
	assert.JSONEq(t, `{"n":1}`, string(first.Data))
}

func TestHubRemovesClosedClients(t *testing.T) {
	fetcher := &fakeFetcher{body: `{}`}
	hub, url := startHub(t, fetcher)

	conn := dial(t, url)
	readState(t, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcasterTick(t *testing.T) {
	t.Run("no clients skips upstream", func(t *testing.T) {
		fetcher := &fakeFetcher{body: `{}`}
		b := NewBroadcaster(NewHub(zap.NewNop()), fetcher, 0, zap.NewNop())

		assert.Equal(t, 0, b.Tick(context.Background()))
		assert.Equal(t, int32(0), atomic.LoadInt32(&fetcher.calls))
		assert.Equal(t, DefaultInterval, b.interval)
	})

	t.Run("fetch failure skips round", func(t *testing.T) {
		fetcher := &fakeFetcher{body: `{}`}
		hub, url := startHub(t, fetcher)
		conn := dial(t, url)
		readState(t, conn)
		require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

		journal := &memJournal{}
		fetcher.set("", errors.New("down"))
		b := NewBroadcaster(hub, fetcher, time.Hour, zap.NewNop(), WithJournal(journal))

		assert.Equal(t, 0, b.Tick(context.Background()))
		assert.Empty(t, journal.payloads)
		assert.Equal(t, 1, hub.Count())
	})

	t.Run("journals sent payloads", func(t *testing.T) {
		fetcher := &fakeFetcher{body: `{"a":1}`}
		hub, url := startHub(t, fetcher)
		conn := dial(t, url)
		readState(t, conn)
		require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

		journal := &memJournal{}
		stamp := time.UnixMilli(1700000000000)
		b := NewBroadcaster(hub, fetcher, time.Hour, zap.NewNop(),
			WithJournal(journal),
			WithClock(func() time.Time { return stamp }),
		)

		assert.Equal(t, 1, b.Tick(context.Background()))
		assert.Equal(t, []string{`{"a":1}`}, journal.payloads)

		msg := readState(t, conn)
		assert.Equal(t, int64(1700000000000), msg.Timestamp)
	})
}

func TestBroadcasterRunStopsOnCancel(t *testing.T) {
	b := NewBroadcaster(NewHub(zap.NewNop()), &fakeFetcher{}, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("broadcaster did not stop")
	}
}
