// Package metrics holds the relay's Prometheus collectors.
//
//   - arena_upstream_requests_total{source,result}  upstream fetches (source: http|ws_initial|broadcast)
//   - arena_upstream_fetch_seconds                  upstream fetch latency
//   - arena_ws_clients                              currently connected relay sockets
//   - arena_broadcasts_total{result}                broadcast ticks (sent|skipped|failed)
//   - arena_ws_dropped_total                        sockets removed after a failed write
//   - arena_journal_records_total                   payloads appended to the snapshot journal
//
// Collectors are registered in init() and served at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	SourceHTTP      = "http"
	SourceWSInitial = "ws_initial"
	SourceBroadcast = "broadcast"

	ResultOK    = "ok"
	ResultError = "error"

	BroadcastSent    = "sent"
	BroadcastSkipped = "skipped"
	BroadcastFailed  = "failed"
)

var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_upstream_requests_total",
			Help: "Upstream state fetches",
		},
		[]string{"source", "result"},
	)

	UpstreamFetchSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arena_upstream_fetch_seconds",
			Help:    "Latency of upstream state fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	WSClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arena_ws_clients",
			Help: "Connected relay WebSocket clients",
		},
	)

	Broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arena_broadcasts_total",
			Help: "Broadcast ticks by outcome",
		},
		[]string{"result"},
	)

	WSDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_ws_dropped_total",
			Help: "Sockets removed after a failed write",
		},
	)

	JournalRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "arena_journal_records_total",
			Help: "Payloads appended to the snapshot journal",
		},
	)
)

func init() {
	prometheus.MustRegister(
		UpstreamRequests,
		UpstreamFetchSeconds,
		WSClients,
		Broadcasts,
		WSDropped,
		JournalRecords,
	)
}

// ObserveFetch records one upstream fetch made on behalf of source.
func ObserveFetch(source string, seconds float64, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	UpstreamRequests.WithLabelValues(source, result).Inc()
	UpstreamFetchSeconds.Observe(seconds)
}
