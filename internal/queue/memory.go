package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue[T any] struct {
	items  chan T
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory queue holding up to cfg.Capacity items
func NewMemoryQueue[T any](cfg Config) *MemoryQueue[T] {
	cfg = cfg.WithDefaults()
	return &MemoryQueue[T]{items: make(chan T, cfg.Capacity)}
}

func (q *MemoryQueue[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue[T]) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error) {
	if maxItems <= 0 {
		maxItems = 1
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var items []T
	select {
	case item, ok := <-q.items:
		if !ok {
			return items, ErrQueueClosed
		}
		items = append(items, item)
	case <-timer.C:
		return items, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	for len(items) < maxItems {
		select {
		case item, ok := <-q.items:
			if !ok {
				return items, ErrQueueClosed
			}
			items = append(items, item)
		default:
			return items, nil
		}
	}
	return items, nil
}

func (q *MemoryQueue[T]) Length(ctx context.Context) (int, error) {
	return len(q.items), nil
}

// Close stops accepting items. Buffered items can still be dequeued.
func (q *MemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}
