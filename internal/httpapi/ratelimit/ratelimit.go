// Package ratelimit throttles write verbs (spec.md section 4.7) the way
// the teacher's common/ratelimit throttles workflow submission: a Redis
// INCR+EXPIRE fixed window, executed atomically via an embedded Lua script.
package ratelimit

import (
	_ "embed"
	"context"
	"fmt"
	"time"
)

//go:embed rate_limit.lua
var script string

// Result mirrors the teacher's RateLimitResult shape.
type Result struct {
	Allowed           bool
	CurrentCount      int64
	Limit             int64
	RetryAfterSeconds int64
}

// ScriptRunner is the subset of *rediscli.Client a Limiter needs.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

// Limiter throttles writes per repo under a fixed window. Nil-safe: a
// Limiter with no backing ScriptRunner always allows (no Redis configured).
type Limiter struct {
	runner ScriptRunner
	limit  int64
	window time.Duration
}

func New(runner ScriptRunner, limit int64, window time.Duration) *Limiter {
	return &Limiter{runner: runner, limit: limit, window: window}
}

// Allow checks and increments the write counter for repo.
func (l *Limiter) Allow(ctx context.Context, repo string) (*Result, error) {
	if l == nil || l.runner == nil {
		return &Result{Allowed: true, Limit: l.limitOrDefault()}, nil
	}
	key := "relay:writelimit:" + repo
	out, err := l.runner.RunScript(ctx, script, []string{key}, l.limit, int64(l.window/time.Second))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: check %s: %w", repo, err)
	}
	arr, ok := out.([]any)
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("ratelimit: unexpected script result %v", out)
	}
	return &Result{
		Allowed:           toInt64(arr[0]) == 1,
		CurrentCount:      toInt64(arr[1]),
		Limit:             toInt64(arr[2]),
		RetryAfterSeconds: toInt64(arr[3]),
	}, nil
}

func (l *Limiter) limitOrDefault() int64 {
	if l == nil {
		return 0
	}
	return l.limit
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
