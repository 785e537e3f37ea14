package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Audit actions recorded for provider configuration changes.
const (
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionDelete   = "delete"
	ActionPrefer   = "prefer"
	ActionValidate = "validate"
)

// AuditRecord describes one configuration mutation.
type AuditRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
	UserID       string    `json:"user_id"`
	Action       string    `json:"action"`
	ProviderID   int64     `json:"provider_id,omitempty"`
	ProviderName string    `json:"provider_name,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Sink receives audit records.
type Sink interface {
	Enqueue(ctx context.Context, rec *AuditRecord) error
}

// NoopSink discards records.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(ctx context.Context, rec *AuditRecord) error {
	return nil
}

// RedisSinkConfig holds configuration for the Redis audit sink
type RedisSinkConfig struct {
	Key     string // Redis list key
	MaxSize int64  // Maximum list length (oldest entries dropped when full, 0 = unlimited)
}

// DefaultRedisSinkConfig returns default configuration
func DefaultRedisSinkConfig() RedisSinkConfig {
	return RedisSinkConfig{
		Key:     "audit:providers",
		MaxSize: 10000,
	}
}

// RedisSink keeps the newest audit records in a capped Redis list.
type RedisSink struct {
	client  *redis.Client
	key     string
	maxSize int64
}

// NewRedisSink creates a new Redis-backed audit sink
func NewRedisSink(client *redis.Client, cfg RedisSinkConfig) *RedisSink {
	if cfg.Key == "" {
		cfg.Key = DefaultRedisSinkConfig().Key
	}
	return &RedisSink{
		client:  client,
		key:     cfg.Key,
		maxSize: cfg.MaxSize,
	}
}

var pushCapped = redis.NewScript(`
	local key = KEYS[1]
	local max_size = tonumber(ARGV[2])

	redis.call('LPUSH', key, ARGV[1])
	if max_size > 0 then
		redis.call('LTRIM', key, 0, max_size - 1)
	end

	return redis.call('LLEN', key)
`)

// Enqueue pushes a record to the head of the list and trims the tail.
func (s *RedisSink) Enqueue(ctx context.Context, rec *AuditRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	if err := pushCapped.Run(ctx, s.client, []string{s.key}, data, s.maxSize).Err(); err != nil {
		return fmt.Errorf("failed to enqueue audit record: %w", err)
	}
	return nil
}

// Recent returns up to count records, newest first.
func (s *RedisSink) Recent(ctx context.Context, count int) ([]*AuditRecord, error) {
	if count <= 0 {
		return nil, nil
	}

	result, err := s.client.LRange(ctx, s.key, 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", err)
	}

	records := make([]*AuditRecord, 0, len(result))
	for i, data := range result {
		var rec AuditRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record %d: %w", i, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

// Size returns the current list length
func (s *RedisSink) Size(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.key).Result()
}
