package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeRunner struct {
	counts map[string]int64
	limit  int64
}

func (f *fakeRunner) RunScript(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	f.counts[keys[0]]++
	count := f.counts[keys[0]]
	if count > f.limit {
		return []any{int64(0), count, f.limit, int64(30)}, nil
	}
	return []any{int64(1), count, f.limit, int64(0)}, nil
}

func TestLimiterAllowsUnderLimit(t *testing.T) {
	runner := &fakeRunner{counts: map[string]int64{}, limit: 2}
	l := New(runner, 2, time.Minute)

	for i := 0; i < 2; i++ {
		res, err := l.Allow(context.Background(), "repo1")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i)
		}
	}
}

func TestLimiterRejectsOverLimit(t *testing.T) {
	runner := &fakeRunner{counts: map[string]int64{}, limit: 1}
	l := New(runner, 1, time.Minute)

	if res, err := l.Allow(context.Background(), "repo1"); err != nil || !res.Allowed {
		t.Fatalf("first call should be allowed: %+v, %v", res, err)
	}
	res, err := l.Allow(context.Background(), "repo1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Errorf("expected second call to be rejected")
	}
	if res.RetryAfterSeconds <= 0 {
		t.Errorf("expected positive retry-after, got %d", res.RetryAfterSeconds)
	}
}

func TestLimiterNilRunnerAlwaysAllows(t *testing.T) {
	l := New(nil, 1, time.Minute)
	res, err := l.Allow(context.Background(), "repo1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !res.Allowed {
		t.Errorf("nil runner should always allow")
	}
}
