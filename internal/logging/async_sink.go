package logging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"model_settings/internal/queue"
)

// LogSink writes audit records to the process log.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Enqueue(ctx context.Context, rec *AuditRecord) error {
	msg := fmt.Sprintf("audit user=%s action=%s provider=%s id=%d request=%s", rec.UserID, rec.Action, rec.ProviderName, rec.ProviderID, rec.RequestID)
	if rec.Error != "" {
		msg += " error=" + rec.Error
	}
	Infof("%s", msg)
	return nil
}

// AsyncSink queues audit records and delivers them to the next sink from a
// background worker, so request handlers never wait on the audit store.
type AsyncSink struct {
	queue   queue.Queue[*AuditRecord]
	next    Sink
	cfg     queue.Config
	retrier retry.Retry[struct{}]

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// NewAsyncSink creates a sink draining q into next. Call Start before use.
func NewAsyncSink(q queue.Queue[*AuditRecord], next Sink, cfg queue.Config) *AsyncSink {
	cfg = cfg.WithDefaults()
	return &AsyncSink{
		queue: q,
		next:  next,
		cfg:   cfg,
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.RetryBackoff,
			MaxDelay:      10 * cfg.RetryBackoff,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			},
		}),
		done: make(chan struct{}),
	}
}

// Start launches the worker. ctx bounds deliveries, not the worker's lifetime;
// use Close to stop it.
func (s *AsyncSink) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.run(context.WithoutCancel(ctx))
	})
}

// Enqueue stamps the record and hands it to the queue.
func (s *AsyncSink) Enqueue(ctx context.Context, rec *AuditRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := s.queue.Enqueue(ctx, rec); err != nil {
		return fmt.Errorf("failed to queue audit record: %w", err)
	}
	return nil
}

// Close stops accepting records, waits for the worker to deliver what the queue
// still hands out, and returns. It must only be called after Start.
func (s *AsyncSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.queue.Close()
		<-s.done
	})
	return err
}

func (s *AsyncSink) run(ctx context.Context) {
	defer close(s.done)

	for {
		items, err := s.queue.DequeueWithTimeout(ctx, s.cfg.BatchSize, s.cfg.BatchTimeout)
		if len(items) > 0 {
			Debugf("delivering %d audit records", len(items))
			for _, rec := range items {
				s.deliver(ctx, rec)
			}
		}

		switch {
		case err == nil:
		case errors.Is(err, queue.ErrQueueClosed):
			Debugf("audit worker stopped")
			return
		case errors.Is(err, queue.ErrMalformedItem):
			Warningf("audit queue: %v", err)
		default:
			Errorf("failed to dequeue audit records: %v", err)
			time.Sleep(s.cfg.RetryBackoff)
		}
	}
}

func (s *AsyncSink) deliver(ctx context.Context, rec *AuditRecord) {
	_, err := s.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.next.Enqueue(ctx, rec)
	})
	if err != nil {
		Errorf("dropping audit record %s/%s for user %s: %v", rec.Action, rec.ProviderName, rec.UserID, err)
	}
}
