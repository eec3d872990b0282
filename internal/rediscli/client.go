// Package rediscli wraps redis.Client with the operations Relay's domain
// components need, adapted from the teacher's common/redis client wrapper
// trimmed to Relay's call sites (blobstore presence cache, peer-sync push
// queue, reconcile lock, httpapi write-rate limiting).
package rediscli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps *redis.Client with error-wrapped, Relay-shaped operations.
type Client struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *Client) Close() error { return c.rdb.Close() }

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("rediscli: get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("rediscli: set %s: %w", key, err)
	}
	return nil
}

func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("rediscli: setnx %s: %w", key, err)
	}
	return ok, nil
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("rediscli: del %v: %w", keys, err)
	}
	return nil
}

func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("rediscli: incr %s: %w", key, err)
	}
	return n, nil
}

func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := c.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("rediscli: incrby %s: %w", key, err)
	}
	return n, nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("rediscli: expire %s: %w", key, err)
	}
	return nil
}

func (c *Client) RPush(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	if err := c.rdb.RPush(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("rediscli: rpush %s: %w", key, err)
	}
	return nil
}

// BLPop blocks up to timeout for one value pushed to any of keys. Returns
// (key, value, false, nil) on timeout with no element popped — callers
// should loop.
func (c *Client) BLPop(ctx context.Context, timeout time.Duration, keys ...string) (key, value string, ok bool, err error) {
	result, err := c.rdb.BLPop(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("rediscli: blpop %v: %w", keys, err)
	}
	return result[0], result[1], true, nil
}

// RunScript executes a Lua script atomically, used by the write-rate limiter
// (httpapi middleware) the same way the teacher's ratelimit package embeds
// rate_limit.lua.
func (c *Client) RunScript(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	out, err := redis.NewScript(script).Run(ctx, c.rdb, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("rediscli: script: %w", err)
	}
	return out, nil
}
