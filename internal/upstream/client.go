// Package upstream fetches the trading engine's state document.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	statePath       = "/api/state"
	maxBodyBytes    = 32 << 20
	defaultTimeout  = 15 * time.Second
	fetchFailPrefix = "Failed to fetch from external API"
)

// ErrUpstream matches every error returned by Client.Fetch.
var ErrUpstream = errors.New("upstream unavailable")

// Error carries the message shown to relay clients.
type Error struct {
	msg   string
	cause error
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrUpstream) hold for every upstream failure.
func (e *Error) Is(target error) bool { return target == ErrUpstream }

func fetchFailed(cause error) *Error {
	return &Error{msg: fmt.Sprintf("%s: %s", fetchFailPrefix, cause), cause: cause}
}

// Config for the upstream client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

// Client performs a fresh GET of the engine state on every call. It never caches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates an upstream client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c
}

// URL returns the full state endpoint.
func (c *Client) URL() string {
	return c.baseURL + statePath
}

// Fetch returns the upstream body verbatim. The body must be a JSON object.
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fetchFailed(errors.Wrap(err, "rate limiter"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(), nil)
	if err != nil {
		return nil, fetchFailed(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fetchFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("upstream returned non-2xx", zap.Int("status", resp.StatusCode))
		return nil, &Error{msg: fmt.Sprintf("External API error: %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fetchFailed(errors.Wrap(err, "read body"))
	}

	if !isJSONObject(body) {
		return nil, fetchFailed(errors.New("response is not a JSON object"))
	}

	return body, nil
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
