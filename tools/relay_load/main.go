// Command relay_load opens many concurrent relay subscribers, either
// WebSocket clients on /ws or SSE readers on /snapshots/stream, and reports
// how many messages they receive.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vadiminshakov/arena/internal/domain"
)

type counters struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	messages    atomic.Int64
	badMessages atomic.Int64
}

func main() {
	var (
		targetURL    string
		proto        string
		connections  int
		testDuration time.Duration
		rampUp       time.Duration
	)

	flag.StringVar(&targetURL, "url", "ws://localhost:5000/ws", "relay endpoint: ws(s)://host/ws or http(s)://host/snapshots/stream")
	flag.StringVar(&proto, "proto", "ws", "ws or sse")
	flag.IntVar(&connections, "conns", 1000, "number of concurrent connections to open")
	flag.DurationVar(&testDuration, "dur", 60*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&rampUp, "ramp", 0, "ramp-up duration (spread connection starts across this window)")
	flag.Parse()

	if connections <= 0 {
		log.Fatalf("invalid conns: %d", connections)
	}
	if proto != "ws" && proto != "sse" {
		log.Fatalf("invalid proto: %s", proto)
	}

	if rampUp == 0 && connections > 100 {
		// default ramp-up: 1 second per 500 connections
		rampUp = time.Duration(connections/500) * time.Second
		if rampUp < 1*time.Second {
			rampUp = 1 * time.Second
		}
		log.Printf("No ramp-up specified for high connection count. Using default ramp-up: %s", rampUp)
	}

	log.Printf("starting relay load: proto=%s url=%s conns=%d duration=%s ramp=%s", proto, targetURL, connections, testDuration, rampUp)
	runtime.GOMAXPROCS(runtime.NumCPU())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if testDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, testDuration)
		defer stop()
	}

	var (
		c  counters
		wg sync.WaitGroup
	)
	start := time.Now()

	var subscribe func(context.Context, *counters)
	if proto == "ws" {
		dialer := &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		subscribe = func(ctx context.Context, c *counters) { wsSubscriber(ctx, dialer, targetURL, c) }
	} else {
		client := sseClient(connections)
		subscribe = func(ctx context.Context, c *counters) { sseSubscriber(ctx, client, targetURL, c) }
	}

	var interval time.Duration
	if rampUp > 0 {
		interval = rampUp / time.Duration(connections)
	}

	for i := 0; i < connections; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, &c)
		}()
	}

	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				log.Printf("status: %s elapsed=%s", c.String(), time.Since(start).Truncate(time.Second))
			}
		}
	}()

	wg.Wait()

	elapsed := time.Since(start)
	if elapsed == 0 {
		elapsed = time.Millisecond
	}
	perSec := float64(c.messages.Load()) / elapsed.Seconds()

	fmt.Printf("done: %s elapsed=%s messages/s=%.2f\n", c.String(), elapsed.Truncate(time.Millisecond), perSec)
	if c.connected.Load() == 0 {
		os.Exit(1)
	}
}

func (c *counters) String() string {
	return fmt.Sprintf("connected=%d connect_errs=%d stream_errs=%d messages=%d bad_messages=%d",
		c.connected.Load(), c.connectErrs.Load(), c.streamErrs.Load(), c.messages.Load(), c.badMessages.Load())
}

func wsSubscriber(ctx context.Context, dialer *websocket.Dialer, url string, c *counters) {
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}

		var msg domain.StateMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != domain.MessageTypeState {
			c.badMessages.Add(1)
			continue
		}
		c.messages.Add(1)
	}
}

func sseClient(connections int) *http.Client {
	transport := &http.Transport{
		MaxConnsPerHost:     connections + 100,
		MaxIdleConns:        connections + 100,
		MaxIdleConnsPerHost: connections + 100,
		DisableCompression:  true,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &http.Client{Transport: transport}
}

func sseSubscriber(ctx context.Context, client *http.Client, url string, c *counters) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		c.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.connectErrs.Add(1)
		return
	}
	c.connected.Add(1)

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if ctx.Err() == nil {
				c.streamErrs.Add(1)
			}
			return
		}
		// count data lines only, heartbeats start with ':'
		if len(line) > 5 && line[:5] == "data:" {
			c.messages.Add(1)
		}
	}
}
