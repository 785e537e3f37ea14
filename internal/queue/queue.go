// Package queue buffers items between request handlers and background workers.
//
// Two backends are provided. MemoryQueue is channel-based and loses its content on
// restart; RedisQueue keeps items in a Redis list so they survive restarts and can
// be drained by any replica.
package queue

import (
	"context"
	"time"
)

// Queue is a FIFO of items of type T.
type Queue[T any] interface {
	// Enqueue adds an item without blocking on consumers.
	Enqueue(ctx context.Context, item T) error

	// DequeueWithTimeout waits up to timeout for the first item, then takes whatever
	// else is immediately available, up to maxItems. An empty slice means the timeout
	// elapsed. After Close it returns ErrQueueClosed, possibly together with the last
	// buffered items.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error)

	// Length returns the number of waiting items.
	Length(ctx context.Context) (int, error)

	// Close stops accepting items.
	Close() error
}

// Config holds queue and worker settings
type Config struct {
	// Capacity bounds the memory backend; Enqueue fails with ErrQueueFull beyond it
	Capacity int

	// BatchSize is the maximum number of items handled per batch
	BatchSize int

	// BatchTimeout is how long a worker waits for the first item of a batch
	BatchTimeout time.Duration

	// MaxAttempts bounds delivery attempts of one item
	MaxAttempts int

	// RetryBackoff is the initial delay between attempts
	RetryBackoff time.Duration
}

// DefaultConfig returns default queue configuration
func DefaultConfig() Config {
	return Config{
		Capacity:     1000,
		BatchSize:    100,
		BatchTimeout: 2 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = d.BatchTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = d.RetryBackoff
	}
	return c
}

