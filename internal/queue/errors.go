package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueFull is returned when the memory backend is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrMalformedItem reports stored entries that could not be decoded; they are dropped
	ErrMalformedItem = errors.New("malformed queue item")
)
