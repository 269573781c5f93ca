// Package queries builds the backend-specific request parameters for each
// logical dashboard query and routes them through the cached-fetch layer.
package queries

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/ossmetrics/bugdash/internal/cache"
	"github.com/ossmetrics/bugdash/internal/config"
	"github.com/ossmetrics/bugdash/internal/fetch"
)

// Cache-key namespaces, one per logical query
const (
	nsPerfImpact = "perf-impact"
	nsBugList    = "bug-list"
	nsBenchmark  = "benchmark"
)

// impactField is the tracker's custom severity-impact field
const impactField = "cf_performance_impact"

// bugFields is the field selection requested from the tracker
var bugFields = []string{
	"id",
	"summary",
	"status",
	"resolution",
	"priority",
	"severity",
	"product",
	"component",
	"creation_time",
	"last_change_time",
	impactField,
}

// BugSearcher abstracts the bug-tracker client so tests can substitute fakes
type BugSearcher interface {
	SearchBugs(ctx context.Context, params url.Values) ([]map[string]any, error)
}

// BenchmarkRunner abstracts the poll-based query client
type BenchmarkRunner interface {
	QueryResults(ctx context.Context, queryID int, parameters map[string]any, maxAge int) ([]map[string]any, error)
}

// Service exposes the dashboard's domain queries
type Service struct {
	bugs    BugSearcher
	bench   BenchmarkRunner
	cache   *cache.Cache
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// NewService creates the query service on top of an explicit cache instance
func NewService(bugs BugSearcher, bench BenchmarkRunner, c *cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bugs:    bugs,
		bench:   bench,
		cache:   c,
		fetcher: fetch.New(c, logger),
		logger:  logger,
	}
}

// BugsByImpact returns open bugs whose severity-impact field equals level.
// With useCache=false the cached entry is invalidated first and the result
// is fetched live, so a later cached call sees the fresh data.
func (s *Service) BugsByImpact(ctx context.Context, level string, useCache bool) ([]map[string]any, error) {
	key := cache.Key(nsPerfImpact, map[string]string{"impactLevel": level})

	return s.fetchRows(ctx, key, useCache, func(ctx context.Context) (any, error) {
		params := url.Values{}
		params.Set("include_fields", strings.Join(bugFields, ","))
		params.Set("f1", impactField)
		params.Set("o1", "equals")
		params.Set("v1", level)
		params.Set("resolution", "---")
		params.Set("limit", strconv.Itoa(config.DefaultBugLimit))
		return s.bugs.SearchBugs(ctx, params)
	})
}

// BugsByIDs returns the bugs with the given identifiers
func (s *Service) BugsByIDs(ctx context.Context, ids []int, useCache bool) ([]map[string]any, error) {
	rendered := make([]string, len(ids))
	for i, id := range ids {
		rendered[i] = strconv.Itoa(id)
	}
	idList := strings.Join(rendered, ",")

	key := cache.Key(nsBugList, map[string]string{"ids": idList})

	return s.fetchRows(ctx, key, useCache, func(ctx context.Context) (any, error) {
		params := url.Values{}
		params.Set("include_fields", strings.Join(bugFields, ","))
		params.Set("id", idList)
		params.Set("limit", strconv.Itoa(config.DefaultBugLimit))
		return s.bugs.SearchBugs(ctx, params)
	})
}

// BenchmarkRows runs the given stored query on the asynchronous SQL backend
// and returns its rows. The query ID goes into the key's namespace, not its
// parameter set: parameters are caller-controlled, so one named "query"
// must not collide with the ID.
func (s *Service) BenchmarkRows(ctx context.Context, queryID int, parameters map[string]string, useCache bool) ([]map[string]any, error) {
	remoteParams := make(map[string]any, len(parameters))
	for name, value := range parameters {
		remoteParams[name] = value
	}
	key := cache.Key(nsBenchmark+":"+strconv.Itoa(queryID), parameters)

	return s.fetchRows(ctx, key, useCache, func(ctx context.Context) (any, error) {
		return s.bench.QueryResults(ctx, queryID, remoteParams, config.DefaultQueryMaxAge)
	})
}

// ImpactBuckets fetches the bug list for each impact level concurrently and
// returns the lists keyed by level. If any bucket fails the whole call fails.
func (s *Service) ImpactBuckets(ctx context.Context, levels []string, useCache bool) (map[string][]map[string]any, error) {
	results := make([][]map[string]any, len(levels))

	fns := make([]func(ctx context.Context) error, len(levels))
	for i, level := range levels {
		fns[i] = func(ctx context.Context) error {
			bugs, err := s.BugsByImpact(ctx, level, useCache)
			if err != nil {
				return fmt.Errorf("impact level %q: %w", level, err)
			}
			results[i] = bugs
			return nil
		}
	}

	if err := fetch.All(ctx, fns...); err != nil {
		return nil, err
	}

	buckets := make(map[string][]map[string]any, len(levels))
	for i, level := range levels {
		buckets[level] = results[i]
	}
	return buckets, nil
}

// CacheStats exposes the cache's diagnostic snapshot
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Snapshot()
}

// fetchRows routes one query through the cached-fetch wrapper. useCache=false
// drops the existing entry first, guaranteeing a miss: the producer runs and
// its fresh result replaces whatever was cached.
func (s *Service) fetchRows(ctx context.Context, key string, useCache bool, producer fetch.Producer) ([]map[string]any, error) {
	if !useCache {
		s.cache.Invalidate(key)
	}

	value, err := s.fetcher.Do(ctx, key, config.DefaultCacheTTL, producer)
	if err != nil {
		return nil, err
	}

	rows, ok := value.([]map[string]any)
	if !ok {
		return nil, fmt.Errorf("cache entry for %q has unexpected type %T", key, value)
	}
	return rows, nil
}
