package reconciler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/policy"
)

type countingRunner struct {
	calls int32
}

func (r *countingRunner) Run(ctx context.Context, scriptPath string, scriptBody []byte, cctx hookrunner.CommitContext, gitDir string, paths hookrunner.SandboxPaths) (*hookrunner.Result, error) {
	atomic.AddInt32(&r.calls, 1)
	return &hookrunner.Result{ExitCode: 0}, nil
}

func cfgWithIndexHook(t *testing.T) *policy.RelayConfig {
	t.Helper()
	cfg, err := policy.Parse([]byte("server:\n  hooks:\n    index:\n      path: hooks/index.lua\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func commitFile(t *testing.T, repo *gitstore.Repo, branch, expected, path, body string) gitstore.Hash {
	t.Helper()
	h, err := repo.Commit("refs/heads/"+branch, expected, "tester", "update "+path, []gitstore.FileChange{
		{Path: path, Content: []byte(body)},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return h
}

// TestReconcileCatchesUpThreeCommits exercises spec.md section 8 scenario 6:
// three unindexed commits trigger three index hook invocations in
// chronological order.
func TestReconcileCatchesUpThreeCommits(t *testing.T) {
	repo, err := gitstore.Open(t.TempDir(), "demo1")
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	cfg := cfgWithIndexHook(t)

	commitFile(t, repo, "main", "", "hooks/index.lua", "-- noop indexer")
	c2 := commitFile(t, repo, "main", string(mustHead(t, repo)), "a.txt", "one")
	c3 := commitFile(t, repo, "main", string(c2), "b.txt", "two")
	_ = c3

	runner := &countingRunner{}
	rc := New(runner)

	dataDir := t.TempDir()
	store, err := rc.Reconcile(context.Background(), repo, "demo1", "main", cfg, dataDir, hookrunner.SandboxPaths{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	current, _ := repo.Head("main")
	if store.IndexedHead() != string(current) {
		t.Errorf("indexed head = %q, want %q", store.IndexedHead(), current)
	}
	if runner.calls != 3 {
		t.Errorf("hook invocations = %d, want 3", runner.calls)
	}
}

// TestReconcileNoOpWhenCaughtUp verifies a second reconcile against an
// unchanged head performs no further hook invocations.
func TestReconcileNoOpWhenCaughtUp(t *testing.T) {
	repo, err := gitstore.Open(t.TempDir(), "demo2")
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	cfg := cfgWithIndexHook(t)
	commitFile(t, repo, "main", "", "hooks/index.lua", "-- noop indexer")

	runner := &countingRunner{}
	rc := New(runner)
	dataDir := t.TempDir()

	if _, err := rc.Reconcile(context.Background(), repo, "demo2", "main", cfg, dataDir, hookrunner.SandboxPaths{}); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	first := runner.calls

	if _, err := rc.Reconcile(context.Background(), repo, "demo2", "main", cfg, dataDir, hookrunner.SandboxPaths{}); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if runner.calls != first {
		t.Errorf("second reconcile invoked hooks again: %d -> %d", first, runner.calls)
	}
}

// TestReconcileNoIndexerAdvancesWithoutInvoking covers the "no index or
// pre-receive hook configured" branch: the store catches up to head without
// any hook invocation.
func TestReconcileNoIndexerAdvancesWithoutInvoking(t *testing.T) {
	repo, err := gitstore.Open(t.TempDir(), "demo3")
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	cfg, _ := policy.Parse(nil)
	commitFile(t, repo, "main", "", "a.txt", "one")

	runner := &countingRunner{}
	rc := New(runner)
	store, err := rc.Reconcile(context.Background(), repo, "demo3", "main", cfg, t.TempDir(), hookrunner.SandboxPaths{})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	current, _ := repo.Head("main")
	if store.IndexedHead() != string(current) {
		t.Errorf("indexed head = %q, want %q", store.IndexedHead(), current)
	}
	if runner.calls != 0 {
		t.Errorf("hook invocations = %d, want 0", runner.calls)
	}
}

func mustHead(t *testing.T, repo *gitstore.Repo) gitstore.Hash {
	t.Helper()
	h, err := repo.Head("main")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	return h
}
