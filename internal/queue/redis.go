package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue using a Redis list of JSON documents.
// The client is owned by the caller.
type RedisQueue[T any] struct {
	client *redis.Client
	key    string
	closed atomic.Bool
}

// NewRedisQueue creates a queue stored under "queue:<name>"
func NewRedisQueue[T any](client *redis.Client, name string) *RedisQueue[T] {
	return &RedisQueue[T]{
		client: client,
		key:    fmt.Sprintf("queue:%s", name),
	}
}

func (q *RedisQueue[T]) Enqueue(ctx context.Context, item T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}
	return nil
}

// DequeueWithTimeout pops up to maxItems. Entries that do not decode are dropped and
// reported with ErrMalformedItem next to the items that did decode.
func (q *RedisQueue[T]) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error) {
	if q.closed.Load() {
		return nil, ErrQueueClosed
	}
	if maxItems <= 0 {
		maxItems = 1
	}

	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] the value
	raw := []string{result[1]}
	if maxItems > 1 {
		more, err := q.client.LPopCount(ctx, q.key, maxItems-1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return q.decode(raw)
		}
		raw = append(raw, more...)
	}
	return q.decode(raw)
}

func (q *RedisQueue[T]) decode(raw []string) ([]T, error) {
	items := make([]T, 0, len(raw))
	var dropped int
	for _, data := range raw {
		var item T
		if err := json.Unmarshal([]byte(data), &item); err != nil {
			dropped++
			continue
		}
		items = append(items, item)
	}
	if dropped > 0 {
		return items, fmt.Errorf("%w: dropped %d entries from %s", ErrMalformedItem, dropped, q.key)
	}
	return items, nil
}

func (q *RedisQueue[T]) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close stops accepting and handing out items; waiting items stay in Redis.
func (q *RedisQueue[T]) Close() error {
	q.closed.Store(true)
	return nil
}
