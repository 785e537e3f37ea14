package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned by callers that turn a denied request into an error.
var ErrLimited = errors.New("rate limit exceeded")

// Window is the sliding window length.
const Window = time.Minute

// Limiter enforces per-key request limits. A limit of 0 or less means unlimited,
// reported as remaining -1 and a zero reset time.
type Limiter interface {
	AllowWithDetails(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

func (l *NoopLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	return true, -1, time.Time{}, nil
}

// slidingWindow trims the window, then admits ARGV[4] requests only if they fit.
// Denied requests are not recorded. Returns {allowed, count after, oldest score}.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local n = tonumber(ARGV[4])
	local member = ARGV[5]
	local ttl = tonumber(ARGV[6])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	local allowed = 0
	if count + n <= limit then
		for i = 1, n do
			redis.call('ZADD', key, now, member .. ':' .. i)
		end
		count = count + n
		allowed = 1
	end
	redis.call('PEXPIRE', key, ttl)

	local oldest = now
	local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #first == 2 then
		oldest = tonumber(first[2])
	end
	return {allowed, count, oldest}
`)

// RateLimiter implements distributed sliding-window rate limiting using Redis sorted sets
type RateLimiter struct {
	client *redis.Client
	window time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, window: Window}
}

func (rl *RateLimiter) key(id string) string {
	return fmt.Sprintf("ratelimit:%s", id)
}

// Allow checks if a single request should be allowed for the given key
func (rl *RateLimiter) Allow(ctx context.Context, id string, limit int) (bool, error) {
	return rl.AllowN(ctx, id, limit, 1)
}

// AllowN checks if N requests fit in the window and records them if so
func (rl *RateLimiter) AllowN(ctx context.Context, id string, limit int, count int) (bool, error) {
	allowed, _, _, err := rl.allowN(ctx, id, limit, count)
	return allowed, err
}

// AllowWithDetails is Allow plus the remaining budget and the time the oldest
// request leaves the window
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, id string, limit int) (bool, int, time.Time, error) {
	return rl.allowN(ctx, id, limit, 1)
}

func (rl *RateLimiter) allowN(ctx context.Context, id string, limit int, n int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	now := time.Now()
	res, err := slidingWindow.Run(ctx, rl.client, []string{rl.key(id)},
		now.Add(-rl.window).UnixMilli(),
		now.UnixMilli(),
		limit,
		n,
		uuid.NewString(),
		(2 * rl.window).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: unexpected reply %v", res)
	}

	remaining := limit - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	resetAt := time.UnixMilli(res[2]).Add(rl.window)
	return res[0] == 1, remaining, resetAt, nil
}

// GetCurrentUsage returns the current request count in the window
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, id string) (int64, error) {
	key := rl.key(id)
	windowStart := time.Now().Add(-rl.window)

	if err := rl.client.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}
	return count, nil
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(ctx context.Context, id string) error {
	return rl.client.Del(ctx, rl.key(id)).Err()
}
