// Package reconcilelock adds a cross-process lock on top of
// internal/reconciler's in-process singleflight coalescing (SPEC_FULL.md
// section 3): when multiple relay-server instances share a repo directory,
// a Redis SETNX+EXPIRE mutex (mirroring the teacher's common/redis
// SetNX-based lock usage) prevents two instances from replaying the same
// (repo, branch) commit range concurrently.
package reconcilelock

import (
	"context"
	"fmt"
	"time"
)

// Client is the subset of *rediscli.Client a Locker needs.
type Client interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// Locker guards (repo, branch) reconciliation across processes. A Locker
// with a nil Client is a no-op: safe for single-instance deployments, where
// internal/reconciler's singleflight already provides the only coalescing
// that's needed.
type Locker struct {
	client Client
	ttl    time.Duration
}

func New(client Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

func lockKey(repo, branch string) string {
	return fmt.Sprintf("relay:reconcilelock:%s:%s", repo, branch)
}

// TryLock attempts to acquire the cross-process lock for (repo, branch).
// Returns false if another process already holds it. Always returns true
// when no Redis client is configured.
func (l *Locker) TryLock(ctx context.Context, repo, branch, owner string) (bool, error) {
	if l == nil || l.client == nil {
		return true, nil
	}
	ok, err := l.client.SetNX(ctx, lockKey(repo, branch), owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("reconcilelock: acquire %s/%s: %w", repo, branch, err)
	}
	return ok, nil
}

// Unlock releases the lock. No-op when no Redis client is configured.
func (l *Locker) Unlock(ctx context.Context, repo, branch string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if err := l.client.Delete(ctx, lockKey(repo, branch)); err != nil {
		return fmt.Errorf("reconcilelock: release %s/%s: %w", repo, branch, err)
	}
	return nil
}
