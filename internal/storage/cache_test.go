package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string](10, time.Second)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "x")

	now = now.Add(2 * time.Second)
	_, ok := c.Get("k")
	assert.False(t, ok)

	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_UpdateAndDelete(t *testing.T) {
	c := NewLRUCache[string](0, time.Minute)
	assert.Equal(t, 1, c.capacity)

	c.Set("k", "v1")
	c.Set("k", "v2")
	v, _ := c.Get("k")
	assert.Equal(t, "v2", v)

	c.Delete("k")
	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Set("x", "y")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_JanitorRemovesExpired(t *testing.T) {
	c := NewLRUCache[string](10, time.Second)
	var offset atomic.Int64
	base := time.Now()
	c.now = func() time.Time { return base.Add(time.Duration(offset.Load())) }

	c.Set("k", "v")
	offset.Store(int64(2 * time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartJanitor(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
}
