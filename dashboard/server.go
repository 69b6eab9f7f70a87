package dashboard

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/metrics"
	"github.com/vadiminshakov/arena/internal/relay"
	"github.com/vadiminshakov/arena/internal/upstream"
)

const (
	journalPollInterval = 3 * time.Second
	heartbeatInterval   = 20 * time.Second
	defaultPageSize     = 300
)

type snapshotReader interface {
	After(index uint64, limit int) ([]domain.SnapshotRecord, error)
	Latest(n int) ([]domain.SnapshotRecord, error)
}

// Server exposes the relay endpoints, the snapshot journal and the HTML index.
type Server struct {
	Addr     string
	Upstream upstream.Fetcher
	Hub      *relay.Hub
	Journal  snapshotReader

	logger *zap.Logger
	now    func() time.Time
}

// NewServer creates a new relay server. journal may be nil.
func NewServer(addr string, fetcher upstream.Fetcher, hub *relay.Hub, journal snapshotReader, logger *zap.Logger) *Server {
	return &Server{
		Addr:     addr,
		Upstream: fetcher,
		Hub:      hub,
		Journal:  journal,
		logger:   logger,
		now:      time.Now,
	}
}

// Router returns the HTTP routes served by the relay.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshots", s.handleSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/snapshots/stream", s.handleSnapshotStream).Methods(http.MethodGet)
	r.Handle("/ws", s.Hub.Handler(upstream.Observed(s.Upstream, metrics.SourceWSInitial))).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/", s.staticHandler()).Methods(http.MethodGet)
	return r
}

func (s *Server) httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := s.httpServer(s.Addr, s.Router())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Hub.Close()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("relay listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := s.httpServer(":80", manager.HTTPHandler(nil))

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := s.httpServer(s.Addr, s.Router())
	httpsSrv.TLSConfig = tlsConfig

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Hub.Close()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server", zap.Error(err))
		}
	}()

	s.logger.Info("relay listening with autotls", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	fetcher := upstream.Observed(s.Upstream, metrics.SourceHTTP)
	body, err := fetcher.Fetch(r.Context())
	if err != nil {
		s.logger.Warn("state request failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, domain.ErrorResponse{
			Error:     err.Error(),
			Source:    domain.SourceExternalAPI,
			Timestamp: domain.FormatTimestamp(s.now()),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.HealthResponse{
		Status:    domain.HealthStatusOK,
		Timestamp: domain.FormatTimestamp(s.now()),
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, domain.ErrorResponse{
			Error:     "snapshot journal not enabled",
			Timestamp: domain.FormatTimestamp(s.now()),
		})
		return
	}

	after, err := parseUintParam(r, "after", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseUintParam(r, "limit", defaultPageSize)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var records []domain.SnapshotRecord
	if r.URL.Query().Get("tail") != "" {
		// newest limit records, oldest first
		records, err = s.Journal.Latest(int(limit))
	} else {
		records, err = s.Journal.After(after, int(limit))
	}
	if err != nil {
		s.logger.Error("read snapshot journal", zap.Error(err))
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []domain.SnapshotRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func parseUintParam(r *http.Request, name string, fallback uint64) (uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func (s *Server) handleSnapshotStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// comment heartbeat so proxies keep the connection open
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	lastIndex := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	isFirstLoad := lastIndex == 0

	sendSnapshots := func() error {
		records, err := s.Journal.After(lastIndex, 0)
		if err != nil {
			return err
		}

		toSend := records
		if isFirstLoad {
			toSend = thinRecords(records)
			isFirstLoad = false
		}

		for _, record := range toSend {
			writeEvent(w, record)
		}
		if len(records) > 0 {
			lastIndex = records[len(records)-1].Index
		}
		flusher.Flush()
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		s.logger.Error("snapshot stream initial load", zap.Error(err))
		return
	}

	// tell the client the journal is empty so it can leave its loading state
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("snapshot stream poll", zap.Error(err))
			}
		}
	}
}

func writeEvent(w io.Writer, record domain.SnapshotRecord) {
	fmt.Fprintf(w, "id: %d\n", record.Index)
	fmt.Fprintf(w, "event: snapshot\n")
	fmt.Fprintf(w, "data: %s\n\n", compactJSON(record.Payload))
}

// compactJSON keeps each SSE data field on a single line.
func compactJSON(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return []byte("{}")
	}
	return buf.Bytes()
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.logger.Debug("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}

// thinRecords keeps the newest 100 records and exponentially thins the older ones.
func thinRecords(records []domain.SnapshotRecord) []domain.SnapshotRecord {
	const keepLast = 100
	if len(records) <= keepLast {
		return records
	}

	older := records[:len(records)-keepLast]
	var thinned []domain.SnapshotRecord

	skip := 1
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append([]domain.SnapshotRecord{older[i]}, thinned...)
		i -= skip
		// double the gap every 12 records
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}

	return append(thinned, records[len(records)-keepLast:]...)
}

func (s *Server) staticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "/index.html" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = io.WriteString(w, indexHTML)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()
		_, _ = io.WriteString(gz, indexHTML)
	})
}
