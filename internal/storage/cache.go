package storage

import (
	"container/list"
	"context"
	"sync"
	"time"

	"model_settings/internal/logging"
)

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// LRUCache is a thread-safe LRU cache with TTL support
type LRUCache[V any] struct {
	mu           sync.Mutex
	capacity     int
	ttl          time.Duration
	items        map[string]*list.Element
	evictionList *list.List
	now          func() time.Time
}

// NewLRUCache creates a new LRU cache. A capacity below 1 is treated as 1.
func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[V]{
		capacity:     capacity,
		ttl:          ttl,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
		now:          time.Now,
	}
}

// Get retrieves an unexpired item and marks it most recently used
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, found := c.items[key]
	if !found {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[V])
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.evictionList.MoveToFront(elem)
	return entry.value, true
}

// Set adds or updates an item, evicting the least recently used one when full
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, found := c.items[key]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.evictionList.Len() > c.capacity {
		if oldest := c.evictionList.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes an item from the cache
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.removeElement(elem)
	}
}

// Clear removes all items from the cache
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.evictionList.Init()
}

// Len returns the current number of items in the cache
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictionList.Len()
}

func (c *LRUCache[V]) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry[V]).key)
}

// CleanupExpired removes all expired items
func (c *LRUCache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0

	var next *list.Element
	for elem := c.evictionList.Back(); elem != nil; elem = next {
		next = elem.Prev()
		if now.After(elem.Value.(*cacheEntry[V]).expiresAt) {
			c.removeElement(elem)
			removed++
		}
	}

	return removed
}

// StartJanitor runs CleanupExpired every interval until ctx is done.
func (c *LRUCache[V]) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.CleanupExpired(); n > 0 {
					logging.Debugf("cache janitor removed %d expired entries", n)
				}
			}
		}
	}()
}
