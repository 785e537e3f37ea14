package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewRedisQueue[*job](client, "jobs")
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(ctx, &job{ID: i, Name: "j"}))
	}
	assert.True(t, mr.Exists("queue:jobs"))

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	items, err := q.DequeueWithTimeout(ctx, 2, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].ID)
	assert.Equal(t, 2, items[1].ID)

	items, err = q.DequeueWithTimeout(ctx, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].ID)
}

func TestRedisQueue_MalformedEntriesDropped(t *testing.T) {
	client, mr := setupTestRedis(t)
	q := NewRedisQueue[job](client, "jobs")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job{ID: 1}))
	_, err := mr.Push("queue:jobs", "not json")
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, job{ID: 2}))

	items, err := q.DequeueWithTimeout(ctx, 10, time.Second)
	assert.ErrorIs(t, err, ErrMalformedItem)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[1].ID)
}

func TestRedisQueue_Close(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRedisQueue[job](client, "jobs")
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, job{ID: 1}))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, job{ID: 2}), ErrQueueClosed)
	_, err := q.DequeueWithTimeout(ctx, 1, time.Second)
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Items stay for the next process.
	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
