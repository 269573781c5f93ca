// Package fetch implements the cached-fetch layer: a wrapper that fills a TTL
// cache from a producer on miss, and a fan-out combinator for issuing several
// independent fetches together.
package fetch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ossmetrics/bugdash/internal/cache"
)

// Producer performs the actual retrieval on a cache miss, typically a network
// call. It must not be invoked on a hit.
type Producer func(ctx context.Context) (any, error)

// Fetcher wraps a cache with miss-fill semantics. Concurrent misses for the
// same key are collapsed so the producer runs at most once per miss.
type Fetcher struct {
	cache  *cache.Cache
	group  singleflight.Group
	logger *slog.Logger
}

// New creates a fetcher backed by the given cache
func New(c *cache.Cache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		cache:  c,
		logger: logger,
	}
}

// Do returns the cached value for key if present, otherwise runs producer,
// stores its result under key with ttl (zero means the cache default) and
// returns it. A producer error propagates to the caller and nothing is
// written to the cache, so the next call retries the producer.
func (f *Fetcher) Do(ctx context.Context, key string, ttl time.Duration, producer Producer) (any, error) {
	if value, ok := f.cache.Get(key); ok {
		f.logger.Debug("cache hit", "key", key)
		return value, nil
	}

	value, err, _ := f.group.Do(key, func() (any, error) {
		// A concurrent caller may have filled the entry while this one was
		// waiting on the flight.
		if value, ok := f.cache.Get(key); ok {
			return value, nil
		}

		f.logger.Debug("cache miss", "key", key)
		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}

		f.cache.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

// All runs the given functions concurrently and waits for every one of them.
// If any function fails, the whole batch fails with that error; there is no
// partial-success result.
func All(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error {
			return fn(ctx)
		})
	}
	return g.Wait()
}
