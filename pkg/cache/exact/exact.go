// Package exact is the exact-match response cache: stable hash keys over a
// normalized prompt, TTL expiry, and LRU eviction at capacity.
package exact

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/draftsmith/genpipe/pkg/models"
)

// Cache is a bounded TTL cache of generated responses.
type Cache struct {
	lru    *expirable.LRU[string, string]
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache holding at most maxEntries values for at most ttl.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &Cache{lru: expirable.NewLRU[string, string](maxEntries, nil, ttl)}
}

// Key derives a stable cache key from the scope label and prompt text.
// Normalization trims and collapses whitespace so cosmetically identical
// prompts hit the same key.
func Key(scope, prompt string) string {
	normalized := strings.Join(strings.Fields(prompt), " ")
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(normalized))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Get returns the cached value if present and unexpired.
func (c *Cache) Get(key string) (string, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return v, true
}

// Put stores a value, evicting the least recently used entry at capacity.
func (c *Cache) Put(key, value string) {
	c.lru.Add(key, value)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Stats returns cache performance counters.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries: int64(c.lru.Len()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
