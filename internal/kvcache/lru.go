package kvcache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// lruEntry pairs a cached value with its absolute expiry, since golang-lru's base Cache
// has no notion of TTL on its own.
type lruEntry struct {
	value   string
	expires time.Time
}

// LRUCache is the in-process fallback KV cache used when no Redis address is configured,
// and in tests. It bounds memory with an LRU eviction policy and layers a TTL check on
// top, the same "bounded, last-writer-wins, no cross-process coordination" cache the spec
// describes — just scoped to a single process.
type LRUCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewLRUCache creates an in-process cache bounded to size entries.
func NewLRUCache(size int) *LRUCache {
	c, _ := lru.New(size) // lru.New only errors on size <= 0; 0 is never passed by callers here.
	if c == nil {
		c, _ = lru.New(1024)
	}
	return &LRUCache{cache: c}
}

// Get implements Cache.
func (c *LRUCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, ok := c.cache.Get(key)
	if !ok {
		return "", false, nil
	}
	entry := raw.(lruEntry)
	if time.Now().After(entry.expires) {
		c.cache.Remove(key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set implements Cache.
func (c *LRUCache) Set(_ context.Context, key string, value string, ttlSeconds int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, lruEntry{
		value:   value,
		expires: time.Now().Add(time.Duration(ttlSeconds) * time.Second),
	})
	return nil
}
