package queries

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossmetrics/bugdash/internal/cache"
	"github.com/ossmetrics/bugdash/internal/config"
)

type fakeBugSearcher struct {
	mu      sync.Mutex
	calls   atomic.Int32
	lastQ   url.Values
	bugs    []map[string]any
	err     error
	failFor string // when set, fail only searches whose v1 matches
}

func (f *fakeBugSearcher) SearchBugs(ctx context.Context, params url.Values) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Add(1)
	f.lastQ = params
	if f.err != nil && (f.failFor == "" || params.Get("v1") == f.failFor) {
		return nil, f.err
	}
	return f.bugs, nil
}

type fakeBenchmarkRunner struct {
	calls      atomic.Int32
	gotQueryID int
	gotParams  map[string]any
	gotMaxAge  int
	rows       []map[string]any
	err        error
}

func (f *fakeBenchmarkRunner) QueryResults(ctx context.Context, queryID int, parameters map[string]any, maxAge int) ([]map[string]any, error) {
	f.calls.Add(1)
	f.gotQueryID = queryID
	f.gotParams = parameters
	f.gotMaxAge = maxAge
	return f.rows, f.err
}

func newTestService(t *testing.T, bugs *fakeBugSearcher, bench *fakeBenchmarkRunner) (*Service, *cache.Cache) {
	t.Helper()
	c := cache.New(5*time.Minute, time.Minute)
	t.Cleanup(c.Close)
	return NewService(bugs, bench, c, nil), c
}

func TestBugsByImpactBuildsFilter(t *testing.T) {
	bugs := &fakeBugSearcher{bugs: []map[string]any{{"id": float64(1)}}}
	svc, _ := newTestService(t, bugs, &fakeBenchmarkRunner{})

	got, err := svc.BugsByImpact(context.Background(), "high", true)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "cf_performance_impact", bugs.lastQ.Get("f1"))
	assert.Equal(t, "equals", bugs.lastQ.Get("o1"))
	assert.Equal(t, "high", bugs.lastQ.Get("v1"))
	assert.Equal(t, "---", bugs.lastQ.Get("resolution"))
	assert.Equal(t, "1000", bugs.lastQ.Get("limit"))
	assert.Contains(t, bugs.lastQ.Get("include_fields"), "cf_performance_impact")
}

func TestBugsByImpactCachesUnderNamespacedKey(t *testing.T) {
	bugs := &fakeBugSearcher{bugs: []map[string]any{{"id": float64(1)}}}
	svc, c := newTestService(t, bugs, &fakeBenchmarkRunner{})

	_, err := svc.BugsByImpact(context.Background(), "high", true)
	require.NoError(t, err)

	stats := c.Snapshot()
	require.Equal(t, 1, stats.Count)
	assert.Equal(t, "perf-impact:impactLevel=high", stats.Keys[0])

	// Second call is served from the cache
	_, err = svc.BugsByImpact(context.Background(), "high", true)
	require.NoError(t, err)
	assert.Equal(t, int32(1), bugs.calls.Load())
}

func TestBugsByImpactRefreshBypassesCache(t *testing.T) {
	bugs := &fakeBugSearcher{bugs: []map[string]any{{"id": float64(1)}}}
	svc, c := newTestService(t, bugs, &fakeBenchmarkRunner{})

	// Warm the cache, then refresh with fresher data behind the backend
	_, err := svc.BugsByImpact(context.Background(), "high", true)
	require.NoError(t, err)
	bugs.bugs = []map[string]any{{"id": float64(1)}, {"id": float64(2)}}

	got, err := svc.BugsByImpact(context.Background(), "high", false)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), bugs.calls.Load())

	// The fresh result replaced the stale entry, so a cached call sees it
	got, err = svc.BugsByImpact(context.Background(), "high", true)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), bugs.calls.Load())

	stats := c.Snapshot()
	assert.Equal(t, 1, stats.Count)
}

func TestBugsByIDs(t *testing.T) {
	bugs := &fakeBugSearcher{bugs: []map[string]any{{"id": float64(10)}, {"id": float64(20)}}}
	svc, c := newTestService(t, bugs, &fakeBenchmarkRunner{})

	got, err := svc.BugsByIDs(context.Background(), []int{10, 20}, true)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	assert.Equal(t, "10,20", bugs.lastQ.Get("id"))
	assert.Equal(t, "bug-list:ids=10,20", c.Snapshot().Keys[0])
}

func TestBenchmarkRows(t *testing.T) {
	bench := &fakeBenchmarkRunner{rows: []map[string]any{{"score": 123.4}}}
	svc, c := newTestService(t, &fakeBugSearcher{}, bench)

	rows, err := svc.BenchmarkRows(context.Background(), 42, map[string]string{"platform": "linux"}, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, 42, bench.gotQueryID)
	assert.Equal(t, map[string]any{"platform": "linux"}, bench.gotParams)
	assert.Equal(t, config.DefaultQueryMaxAge, bench.gotMaxAge)
	assert.Equal(t, "benchmark:42:platform=linux", c.Snapshot().Keys[0])
}

func TestBenchmarkRowsDistinctQueriesDistinctEntries(t *testing.T) {
	bench := &fakeBenchmarkRunner{}
	svc, c := newTestService(t, &fakeBugSearcher{}, bench)
	ctx := context.Background()

	// A caller parameter literally named "query" must not collide with the
	// stored-query ID
	params := map[string]string{"query": "speedometer"}

	bench.rows = []map[string]any{{"from": "query-1"}}
	rows, err := svc.BenchmarkRows(ctx, 1, params, true)
	require.NoError(t, err)
	assert.Equal(t, "query-1", rows[0]["from"])

	bench.rows = []map[string]any{{"from": "query-2"}}
	rows, err = svc.BenchmarkRows(ctx, 2, params, true)
	require.NoError(t, err)
	assert.Equal(t, "query-2", rows[0]["from"])

	assert.Equal(t, int32(2), bench.calls.Load(), "each query ID needs its own backend call")
	assert.Equal(t, 2, c.Snapshot().Count, "each query ID caches under its own key")

	// Cached re-reads still resolve to the right query
	rows, err = svc.BenchmarkRows(ctx, 1, params, true)
	require.NoError(t, err)
	assert.Equal(t, "query-1", rows[0]["from"])
	assert.Equal(t, int32(2), bench.calls.Load())
}

func TestBenchmarkRowsErrorNotCached(t *testing.T) {
	bench := &fakeBenchmarkRunner{err: errors.New("query timed out waiting for results")}
	svc, c := newTestService(t, &fakeBugSearcher{}, bench)

	_, err := svc.BenchmarkRows(context.Background(), 42, nil, true)
	require.Error(t, err)
	assert.Equal(t, 0, c.Snapshot().Count)

	// A later call retries instead of serving a cached failure
	bench.err = nil
	bench.rows = []map[string]any{{"score": 1.0}}
	rows, err := svc.BenchmarkRows(context.Background(), 42, nil, true)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int32(2), bench.calls.Load())
}

func TestImpactBuckets(t *testing.T) {
	bugs := &fakeBugSearcher{bugs: []map[string]any{{"id": float64(1)}}}
	svc, c := newTestService(t, bugs, &fakeBenchmarkRunner{})

	buckets, err := svc.ImpactBuckets(context.Background(), []string{"high", "medium", "low"}, true)
	require.NoError(t, err)
	require.Len(t, buckets, 3)
	for _, level := range []string{"high", "medium", "low"} {
		assert.Len(t, buckets[level], 1, "bucket %q", level)
	}

	assert.Equal(t, int32(3), bugs.calls.Load())
	assert.Equal(t, 3, c.Snapshot().Count)
}

func TestImpactBucketsFailsWhenOneBucketFails(t *testing.T) {
	boom := errors.New("backend exploded")
	bugs := &fakeBugSearcher{
		bugs:    []map[string]any{{"id": float64(1)}},
		err:     boom,
		failFor: "medium",
	}
	svc, _ := newTestService(t, bugs, &fakeBenchmarkRunner{})

	_, err := svc.ImpactBuckets(context.Background(), []string{"high", "medium", "low"}, true)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `impact level "medium"`)
}
