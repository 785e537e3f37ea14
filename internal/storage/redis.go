package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProviderCache caches encrypted provider records per user in Redis
type RedisProviderCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisProviderCache creates a provider list cache
func NewRedisProviderCache(client *redis.Client, ttl time.Duration) *RedisProviderCache {
	return &RedisProviderCache{client: client, ttl: ttl, prefix: "providers:"}
}

func (c *RedisProviderCache) key(userID string) string {
	return c.prefix + userID
}

// Get returns the cached records; ok is false on a miss
func (c *RedisProviderCache) Get(ctx context.Context, userID string) ([]ProviderRecord, bool, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read provider cache: %w", err)
	}

	var records []ProviderRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("failed to decode provider cache: %w", err)
	}
	return records, true, nil
}

// Set stores the records with the configured TTL
func (c *RedisProviderCache) Set(ctx context.Context, userID string, records []ProviderRecord) error {
	if records == nil {
		records = []ProviderRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode provider cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write provider cache: %w", err)
	}
	return nil
}

// Invalidate drops the user's entry
func (c *RedisProviderCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate provider cache: %w", err)
	}
	return nil
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
