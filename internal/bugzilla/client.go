// Package bugzilla implements a client for the bug-tracker REST API
package bugzilla

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/ossmetrics/bugdash/internal/backend"
)

// Client performs bug searches against the tracker's REST endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Config holds configuration for the bug-tracker client
type Config struct {
	// BaseURL is the root of the tracker, e.g. "https://bugs.example.org"
	BaseURL string
	// APIKey is appended as the api_key query parameter when non-empty
	APIKey string
	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// NewClient creates a bug-tracker client
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// SearchBugs issues a GET against /rest/bug with the given query parameters
// and returns the matching bugs. A response without a bugs field decodes to
// an empty slice rather than an error.
func (c *Client) SearchBugs(ctx context.Context, params url.Values) ([]map[string]any, error) {
	if c.apiKey != "" {
		params = cloneValues(params)
		params.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + "/rest/bug?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build bug search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bug search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &backend.TransportError{StatusCode: resp.StatusCode}
	}

	var body struct {
		Bugs []map[string]any `json:"bugs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &backend.FormatError{Detail: err.Error()}
	}

	if body.Bugs == nil {
		body.Bugs = []map[string]any{}
	}

	c.logger.Debug("bug search completed", "bugs", len(body.Bugs))
	return body.Bugs, nil
}

// cloneValues copies params so the caller's map is not mutated
func cloneValues(params url.Values) url.Values {
	out := make(url.Values, len(params))
	for key, values := range params {
		out[key] = append([]string(nil), values...)
	}
	return out
}
