package adapter

import (
	"sync"
	"time"

	"github.com/matchpulse/feedgate/internal/feed"
)

// ttlCache is the adapter's short-TTL hot tier. It trades "stay close to
// real time" against the orchestrator's durable "survive an outage" tier.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   feed.Clock
}

type cacheEntry struct {
	result    feed.Result
	expiresAt time.Time
}

func newTTLCache(clock feed.Clock) *ttlCache {
	return &ttlCache{
		entries: make(map[string]cacheEntry),
		clock:   clock,
	}
}

// Get returns the cached result for key while it is still fresh.
func (c *ttlCache) Get(key string) (feed.Result, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.clock.Now().After(entry.expiresAt) {
		return feed.Result{}, false
	}
	return entry.result, true
}

// Set stores result under key for ttl.
func (c *ttlCache) Set(key string, result feed.Result, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expiresAt: c.clock.Now().Add(ttl)}
}

// Purge drops every entry.
func (c *ttlCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
