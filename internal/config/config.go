package config

import "time"

// CacheConfig holds configuration for result caching
type CacheConfig struct {
	// TTL is the time-to-live for cached results
	TTL time.Duration
	// CleanupInterval is how often expired entries are swept
	CleanupInterval time.Duration
}

// DefaultCacheConfig returns default configuration for caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:             DefaultCacheTTL,
		CleanupInterval: DefaultCacheCleanupInterval,
	}
}

// PollConfig holds configuration for the submit-and-poll query client
type PollConfig struct {
	// MaxAttempts is the maximum number of submissions, including the first
	MaxAttempts int
	// Interval is the fixed delay between submissions
	Interval time.Duration
}

// DefaultPollConfig returns default configuration for query polling
func DefaultPollConfig() PollConfig {
	return PollConfig{
		MaxAttempts: DefaultMaxPollAttempts,
		Interval:    DefaultPollInterval,
	}
}
