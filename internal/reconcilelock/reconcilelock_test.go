package reconcilelock

import (
	"context"
	"testing"
	"time"
)

type fakeClient struct {
	held map[string]string
}

func (f *fakeClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = value
	return true, nil
}

func (f *fakeClient) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.held, k)
	}
	return nil
}

func TestTryLockExclusive(t *testing.T) {
	client := &fakeClient{held: map[string]string{}}
	l := New(client, time.Minute)

	ok, err := l.TryLock(context.Background(), "repo1", "main", "owner-a")
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}

	ok, err = l.TryLock(context.Background(), "repo1", "main", "owner-b")
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if ok {
		t.Errorf("expected second lock attempt to fail while held")
	}

	if err := l.Unlock(context.Background(), "repo1", "main"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = l.TryLock(context.Background(), "repo1", "main", "owner-b")
	if err != nil || !ok {
		t.Fatalf("lock after unlock: ok=%v err=%v", ok, err)
	}
}

func TestNilClientAlwaysLocks(t *testing.T) {
	l := New(nil, time.Minute)
	ok, err := l.TryLock(context.Background(), "repo1", "main", "owner-a")
	if err != nil || !ok {
		t.Fatalf("expected nil-client lock to succeed: ok=%v err=%v", ok, err)
	}
	if err := l.Unlock(context.Background(), "repo1", "main"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
}
