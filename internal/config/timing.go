package config

import "time"

// Default timing configurations used throughout the dashboard backend
const (
	// DefaultCacheTTL is the default time-to-live for cached query results
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCleanupInterval is how often the cache sweeps expired entries
	DefaultCacheCleanupInterval = 1 * time.Minute

	// DefaultPollInterval is the delay between poll attempts against the query backend
	DefaultPollInterval = 5 * time.Second

	// DefaultMaxPollAttempts is the maximum number of submissions per query,
	// including the initial one
	DefaultMaxPollAttempts = 12

	// DefaultQueryMaxAge is the freshness hint (seconds) sent with the first
	// submission; re-submissions always force max_age=0
	DefaultQueryMaxAge = 300

	// DefaultBugLimit is the result-count limit sent with bug searches
	DefaultBugLimit = 1000
)
