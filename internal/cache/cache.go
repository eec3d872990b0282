// Package cache is a small TTL key-value cache, adapted from the teacher's
// common/cache: an in-memory implementation for single-instance
// deployments, and a Redis-backed one otherwise. Used by blobstore for
// presence-only caching (SPEC_FULL.md section 3.1).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/relayhq/relay/internal/rediscli"
)

type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
	stop chan struct{}
}

type entry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{data: map[string]entry{}, stop: make(chan struct{})}
	go c.cleanupLoop()
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.data[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *MemoryCache) Close() error {
	close(c.stop)
	return nil
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.data {
				if now.After(e.expiresAt) {
					delete(c.data, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// RedisCache is a Cache backed by rediscli.Client.
type RedisCache struct {
	client *rediscli.Client
}

func NewRedisCache(client *rediscli.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.client.Get(ctx, key)
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Delete(ctx, key)
}

func (c *RedisCache) Close() error { return nil }
