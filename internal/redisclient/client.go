package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/fixed_window.lua
var fixedWindowScript string

type Client struct {
	rdb          *redis.Client
	windowScript *redis.Script
}

// RateLimitResult describes one fixed-window check
type RateLimitResult struct {
	Allowed    bool
	Count      int64
	Limit      int
	RetryAfter time.Duration
}

// NewClient creates a new Redis client and verifies connectivity
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewClientWithRedis(rdb), nil
}

// NewClientWithRedis wraps an existing connection
func NewClientWithRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:          rdb,
		windowScript: redis.NewScript(fixedWindowScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// AllowFixedWindow counts one attempt against key and reports whether it is
// within limit for the current window. The window starts at the first attempt.
func (c *Client) AllowFixedWindow(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	redisKey := fmt.Sprintf("ratelimit:%s", key)

	raw, err := c.windowScript.Run(ctx, c.rdb, []string{redisKey}, window.Milliseconds()).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return nil, fmt.Errorf("unexpected script result type")
	}
	count, ok1 := values[0].(int64)
	ttl, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("unexpected script result type")
	}

	result := &RateLimitResult{
		Allowed: count <= int64(limit),
		Count:   count,
		Limit:   limit,
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(ttl) * time.Millisecond
	}
	return result, nil
}

// MarkOnce records an idempotency key with TTL. It returns false when the key
// was already present.
func (c *Client) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("idempotency:%s", key), "1", ttl).Result()
}

// ForgetOnce removes an idempotency key so a later delivery is processed again
func (c *Client) ForgetOnce(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}
