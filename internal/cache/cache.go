package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/ossmetrics/bugdash/internal/config"
)

// Cache is an in-memory key-value store with TTL-based expiration. It is an
// explicit instance: the process that composes the application owns it and
// passes it by reference, so tests can use independent caches.
type Cache struct {
	entries map[string]*Entry
	mu      sync.Mutex
	ttl     time.Duration
	done    chan struct{} // Signal to stop cleanup goroutine
}

// Entry represents a cached value with expiration metadata
type Entry struct {
	Value     any
	CachedAt  time.Time
	ExpiresAt time.Time
}

// Stats is a diagnostic snapshot of the cache. It must not be used for
// correctness decisions.
type Stats struct {
	Count int
	Keys  []string
}

// New creates a cache with the specified default TTL.
// Starts a background cleanup goroutine that removes expired entries;
// call Close to stop it. Zero or negative durations mean the defaults.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = config.DefaultCacheTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = config.DefaultCacheCleanupInterval
	}

	c := &Cache{
		entries: make(map[string]*Entry),
		ttl:     defaultTTL,
		done:    make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)

	return c
}

// Get returns the value stored under key if present and not expired.
// An expired entry is evicted as a side effect of the read.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	return entry.Value, true
}

// Set stores value under key, overwriting any existing entry. A ttl of zero
// or less means the cache's default TTL.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.entries[key] = &Entry{
		Value:     value,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// Invalidate removes the entry for key if present; absent keys are a no-op.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Clear removes all entries
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry)
}

// Snapshot returns diagnostic stats: the entry count and the sorted key list
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return Stats{
		Count: len(c.entries),
		Keys:  keys,
	}
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	close(c.done)
}

// cleanupLoop periodically removes expired entries
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.done:
			return
		}
	}
}

// cleanup removes expired entries
func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}
