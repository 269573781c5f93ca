// Package redash implements a client for a query backend that executes SQL
// asynchronously: a submission may return either a completed result or a job
// reference, in which case the client re-submits on a fixed interval until
// the result is ready or its attempt budget is spent.
package redash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ossmetrics/bugdash/internal/backend"
	"github.com/ossmetrics/bugdash/internal/config"
)

// SleepFunc suspends the calling goroutine for d, or returns early with the
// context's error if it is cancelled first. Injectable so tests can observe
// the delays without waiting them out.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client submits queries and polls for their results
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	maxAttempts  int
	pollInterval time.Duration
	sleep        SleepFunc
	logger       *slog.Logger
}

// Config holds configuration for the query client
type Config struct {
	// BaseURL is the root of the query backend, e.g. "https://sql.example.org"
	BaseURL string
	// APIKey is sent as an Authorization header when non-empty
	APIKey string
	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
	// Poll bounds the submit-and-poll loop; zero values mean the defaults
	Poll config.PollConfig
	// Sleep defaults to a context-aware timer wait
	Sleep SleepFunc
	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// NewClient creates a query client
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Poll.MaxAttempts <= 0 {
		cfg.Poll.MaxAttempts = config.DefaultMaxPollAttempts
	}
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = config.DefaultPollInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = waitFor
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		httpClient:   cfg.HTTPClient,
		maxAttempts:  cfg.Poll.MaxAttempts,
		pollInterval: cfg.Poll.Interval,
		sleep:        cfg.Sleep,
		logger:       cfg.Logger,
	}
}

// resultEnvelope is the union response shape: a completed result carries
// query_result, a still-running query carries job.
type resultEnvelope struct {
	QueryResult *struct {
		Data struct {
			Rows []map[string]any `json:"rows"`
		} `json:"data"`
	} `json:"query_result"`
	Job json.RawMessage `json:"job"`
}

type submitBody struct {
	Parameters map[string]any `json:"parameters"`
	MaxAge     int            `json:"max_age"`
}

// QueryResults submits the query and polls until the backend reports a
// completed result, returning its rows (empty if the result carries none).
// The first submission passes maxAge as a freshness hint; re-submissions
// force max_age=0 so the backend re-checks the running job. A transport
// error on any attempt is terminal.
func (c *Client) QueryResults(ctx context.Context, queryID int, parameters map[string]any, maxAge int) ([]map[string]any, error) {
	if parameters == nil {
		parameters = map[string]any{}
	}

	fetchID := uuid.NewString()
	submittedAt := time.Now()
	age := maxAge

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		env, err := c.submit(ctx, queryID, parameters, age)
		if err != nil {
			return nil, err
		}

		if env.QueryResult != nil {
			rows := env.QueryResult.Data.Rows
			if rows == nil {
				rows = []map[string]any{}
			}
			c.logger.Debug("query completed",
				"fetch_id", fetchID,
				"query_id", queryID,
				"attempts", attempt,
				"rows", len(rows),
				"elapsed", time.Since(submittedAt))
			return rows, nil
		}

		if len(env.Job) == 0 {
			return nil, &backend.FormatError{}
		}

		if attempt == c.maxAttempts {
			break
		}

		c.logger.Debug("query still running",
			"fetch_id", fetchID,
			"query_id", queryID,
			"attempt", attempt,
			"max_attempts", c.maxAttempts)

		if err := c.sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
		age = 0
	}

	return nil, backend.ErrPollTimeout
}

// submit posts one query execution request and decodes the union response
func (c *Client) submit(ctx context.Context, queryID int, parameters map[string]any, maxAge int) (*resultEnvelope, error) {
	payload, err := json.Marshal(submitBody{Parameters: parameters, MaxAge: maxAge})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query request: %w", err)
	}

	url := fmt.Sprintf("%s/api/queries/%d/results", c.baseURL, queryID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &backend.TransportError{StatusCode: resp.StatusCode}
	}

	var env resultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &backend.FormatError{Detail: err.Error()}
	}

	return &env, nil
}

// waitFor is the default SleepFunc
func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
