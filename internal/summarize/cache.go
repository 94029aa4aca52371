package summarize

import (
	"sync"
	"time"
)

const (
	defaultCacheCapacity = 100
	defaultCacheTTL      = 30 * time.Minute
)

type cacheEntry struct {
	summary   string
	createdAt time.Time
}

// SummaryCache memoizes summarization results keyed by a content
// fingerprint. Entries expire after a TTL measured from creation, and
// when the cache is full inserting a new key evicts the single entry
// with the oldest creation time. Lookups never refresh an entry's age,
// so a summary is recomputed at most once per TTL no matter how often
// it is read.
type SummaryCache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewSummaryCache builds a cache with the default capacity and TTL.
func NewSummaryCache() *SummaryCache {
	return newSummaryCache(defaultCacheCapacity, defaultCacheTTL, time.Now)
}

func newSummaryCache(capacity int, ttl time.Duration, now func() time.Time) *SummaryCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SummaryCache{
		entries:  make(map[string]cacheEntry, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      now,
	}
}

// Get returns the cached summary for key, treating expired entries as
// misses and removing them.
func (c *SummaryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		return "", false
	}
	return entry.summary, true
}

// Put stores a summary under key, evicting the oldest entry when the
// cache is at capacity. Overwriting an existing key resets its age.
func (c *SummaryCache) Put(key, summary string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{summary: summary, createdAt: c.now()}
}

// Len reports the number of live entries, expired ones included until
// their next lookup.
func (c *SummaryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SummaryCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.createdAt.Before(oldestAt) {
			oldestKey, oldestAt = key, entry.createdAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
