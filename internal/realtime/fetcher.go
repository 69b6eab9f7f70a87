package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/arena/internal/domain"
	"github.com/vadiminshakov/arena/internal/normalize"
)

// StateFetcher loads one normalized state.
type StateFetcher interface {
	FetchState(ctx context.Context) (domain.ApiState, error)
}

// HTTPFetcher reads the relay's /api/state endpoint.
type HTTPFetcher struct {
	baseURL    string
	httpClient *http.Client
	normalizer *normalize.Normalizer
}

// NewHTTPFetcher creates a fetcher for the relay at baseURL.
func NewHTTPFetcher(baseURL string, timeout time.Duration, normalizer *normalize.Normalizer) *HTTPFetcher {
	if normalizer == nil {
		normalizer = normalize.New()
	}
	return &HTTPFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		normalizer: normalizer,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// FetchState returns the normalized state. Error bodies are turned into errors
// carrying their message.
func (f *HTTPFetcher) FetchState(ctx context.Context) (domain.ApiState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/state", nil)
	if err != nil {
		return domain.ApiState{}, errors.Wrap(err, "build state request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.ApiState{}, errors.Wrap(err, "fetch state")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ApiState{}, errors.Wrap(err, "read state")
	}

	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if eb.Error != "" {
			return domain.ApiState{}, errors.New(eb.Error)
		}
		return domain.ApiState{}, errors.Errorf("API Error: %s", resp.Status)
	}
	if eb.Error != "" {
		return domain.ApiState{}, errors.New(eb.Error)
	}

	return f.normalizer.FromJSON(body)
}
