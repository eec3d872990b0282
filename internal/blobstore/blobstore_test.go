package blobstore

import (
	"context"
	"testing"
)

func TestPutGetIdempotent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	ctx := context.Background()

	h1, err := s.Put(ctx, "repo1", 0, []byte("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	h2, err := s.Put(ctx, "repo1", 0, []byte("hello"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Put not idempotent: %s != %s", h1, h2)
	}

	data, ok, err := s.Get(ctx, h1)
	if err != nil || !ok {
		t.Fatalf("Get: %v, %v", ok, err)
	}
	if string(data) != "hello" {
		t.Errorf("Get = %q, want hello", data)
	}
}

func TestPutEnforcesQuota(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	ctx := context.Background()

	if _, err := s.Put(ctx, "repo1", 10, []byte("12345")); err != nil {
		t.Fatalf("first Put under quota: %v", err)
	}
	if _, err := s.Put(ctx, "repo1", 10, []byte("1234567890123")); err == nil {
		t.Fatal("expected ErrQuotaExceeded")
	}
	// Re-putting the same bytes a repo already referenced never double-counts.
	if _, err := s.Put(ctx, "repo1", 10, []byte("12345")); err != nil {
		t.Fatalf("re-Put of already-referenced blob should not hit quota: %v", err)
	}
}

func TestGetMissingReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	_, ok, err := s.Get(context.Background(), "deadbeef")
	if err != nil || ok {
		t.Fatalf("Get for missing hash = %v, %v, want false, nil", ok, err)
	}
}
