package store

import (
	"context"
	"sync"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

type cacheEntry struct {
	value     forecast.FusedForecast
	expiresAt time.Time
}

// MemoryCache is a concurrency-safe in-memory forecast cache.
// Expired entries are removed lazily when looked up.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry

	maxEntries int // <= 0 means unlimited
	now        func() time.Time
}

// MemoryOption customizes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) { c.now = now }
}

// NewMemoryCache creates a new MemoryCache holding at most maxEntries forecasts.
func NewMemoryCache(maxEntries int, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		data:       make(map[string]cacheEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached forecast for key if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key string) (forecast.FusedForecast, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return forecast.FusedForecast{}, false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a writer may have replaced the entry meanwhile.
		if current, ok := c.data[key]; ok && !c.now().Before(current.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return forecast.FusedForecast{}, false, nil
	}
	return copyForecast(entry.value), true, nil
}

// Set stores value under key, replacing any previous entry.
func (c *MemoryCache) Set(_ context.Context, key string, value forecast.FusedForecast, ttl time.Duration) error {
	now := c.now()
	entry := cacheEntry{value: copyForecast(value), expiresAt: now.Add(ttl)}
	entry.value.Cached = false

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.data[key] = entry
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// evictLocked drops expired entries, or failing that the entry closest to expiry.
func (c *MemoryCache) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
		removed  bool
	)
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			removed = true
			continue
		}
		if victim == "" || e.expiresAt.Before(earliest) {
			victim, earliest = k, e.expiresAt
		}
	}
	if !removed && victim != "" {
		delete(c.data, victim)
	}
}

func copyForecast(f forecast.FusedForecast) forecast.FusedForecast {
	f.Signals = append([]forecast.Signal(nil), f.Signals...)
	return f
}
