package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LRU is an expiring least-recently-used cache keyed by string.
// All operations are safe for concurrent use; each one runs under a
// single mutex so an eviction and the insert that triggered it are atomic.
type LRU[V any] struct {
	mu    sync.Mutex
	items *simplelru.LRU[string, entry[V]]
	now   func() time.Time
}

// NewLRU creates a cache holding at most capacity entries.
func NewLRU[V any](capacity int) (*LRU[V], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	items, err := simplelru.NewLRU[string, entry[V]](capacity, nil)
	if err != nil {
		return nil, err
	}
	return &LRU[V]{items: items, now: time.Now}, nil
}

// Get returns the value stored under key. A hit makes the entry the most
// recently used; an expired entry is removed and reported as a miss.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		c.items.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for ttl. Overwriting an existing key refreshes
// its recency and never evicts; inserting a new key into a full cache evicts
// the least recently used entry. A ttl of zero or less makes the entry
// expire on its next read.
func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Add(key, entry[V]{value: value, expiresAt: c.now().Add(ttl)})
}

// Delete removes key. Deleting a missing key is a no-op.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	c.items.Remove(key)
	c.mu.Unlock()
}

// Clear removes every entry.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	c.items.Purge()
	c.mu.Unlock()
}

// ClearPrefix removes all entries whose key starts with prefix and
// returns how many were removed.
func (c *LRU[V]) ClearPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.items.Keys() {
		if strings.HasPrefix(key, prefix) && c.items.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, including expired ones that
// have not been read since they expired.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}
