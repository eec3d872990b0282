// Package reconciler implements the JIT Reconciler (spec.md section 4.6):
// on every query, detect drift between a branch's indexed_head and its
// current head, and replay the missing commits through the indexing hook
// before answering. Concurrent queries against the same stale branch
// coalesce onto one reconciliation via golang.org/x/sync/singleflight.
package reconciler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/relayhq/relay/internal/branchindex"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/policy"
)

// StaleError is returned when a reconciliation step fails partway: the
// index retains its last successfully indexed commit, and the caller
// reports the failure as a 503 carrying that commit (spec.md section 7).
type StaleError struct {
	LastIndexedHead string
}

func (e *StaleError) Error() string {
	return fmt.Sprintf("reconciler: index stale at %s", e.LastIndexedHead)
}

// indexKind is the hook kind the reconciler prefers; pre-receive is the
// fallback so a repository needs only one indexer shared with the receive
// path (spec.md section 4.6, step 4).
const (
	indexKind      = "index"
	preReceiveKind = "pre-receive"
)

// MaxParallelBranches bounds concurrent hook child processes during a
// branch=all reconciliation (SPEC_FULL.md section 4.6).
const MaxParallelBranches = 8

// HookRunner is the subset of *hookrunner.Runner the reconciler needs,
// narrowed to an interface so reconciliation logic can be tested without
// spawning cmd/relay-hook-runner.
type HookRunner interface {
	Run(ctx context.Context, scriptPath string, scriptBody []byte, cctx hookrunner.CommitContext, gitDir string, paths hookrunner.SandboxPaths) (*hookrunner.Result, error)
}

// Reconciler drives the replay protocol for one server: it owns the
// singleflight group coalescing concurrent reconciliations of the same
// (repo, branch).
type Reconciler struct {
	Runner HookRunner

	sf singleflight.Group
}

func New(runner HookRunner) *Reconciler {
	return &Reconciler{Runner: runner}
}

func key(repo, branch string) string { return repo + "/" + branch }

// Reconcile brings repoName's branch index up to the branch's current head,
// blocking the caller until done. Concurrent callers for the same
// (repoName, branch) share one reconciliation.
func (rc *Reconciler) Reconcile(ctx context.Context, repo *gitstore.Repo, repoName, branch string, cfg *policy.RelayConfig, dataDir string, paths hookrunner.SandboxPaths) (*branchindex.Store, error) {
	v, err, _ := rc.sf.Do(key(repoName, branch), func() (any, error) {
		return rc.reconcileOnce(ctx, repo, repoName, branch, cfg, dataDir, paths)
	})
	if err != nil {
		return nil, err
	}
	return v.(*branchindex.Store), nil
}

func (rc *Reconciler) reconcileOnce(ctx context.Context, repo *gitstore.Repo, repoName, branch string, cfg *policy.RelayConfig, dataDir string, paths hookrunner.SandboxPaths) (*branchindex.Store, error) {
	store, err := branchindex.Open(dataDir, repoName, branch)
	if err != nil {
		return nil, fmt.Errorf("reconciler: open index: %w", err)
	}

	current, err := repo.Head(branch)
	if err != nil {
		return nil, fmt.Errorf("reconciler: head: %w", err)
	}
	indexed := gitstore.Hash(store.IndexedHead())

	if current == indexed {
		return store, nil
	}

	chain, ancestor := repo.CommitSinceChain(indexed, current)
	if !ancestor {
		// indexed is null or not an ancestor of current: full rebuild.
		indexed = gitstore.Zero
		chain, _ = repo.CommitSinceChain(gitstore.Zero, current)
	}

	scriptPath, ok := cfg.HookPathFor(indexKind)
	if !ok {
		scriptPath, ok = cfg.HookPathFor(preReceiveKind)
	}
	if !ok {
		// No indexer configured: nothing to replay, the store stays empty
		// but is still considered caught up to current.
		if err := store.SetIndexedHead(string(current)); err != nil {
			return nil, err
		}
		return store, nil
	}

	prev := indexed
	for _, step := range chain {
		scriptBody, err := repo.ReadAt(step, scriptPath)
		if err != nil {
			return store, &StaleError{LastIndexedHead: string(prev)}
		}

		cctx := hookrunner.CommitContext{
			OldCommit: string(prev),
			NewCommit: string(step),
			RefName:   "refs/heads/" + branch,
			Branch:    branch,
			RepoPath:  repo.Path(),
		}

		if _, err := rc.Runner.Run(ctx, scriptPath, scriptBody, cctx, repo.Path(), paths); err != nil {
			return store, &StaleError{LastIndexedHead: string(prev)}
		}

		if err := store.SetIndexedHead(string(step)); err != nil {
			return store, &StaleError{LastIndexedHead: string(prev)}
		}
		prev = step
	}

	return store, nil
}

// ReconcileAll runs Reconcile for every branch in repo concurrently,
// bounded by MaxParallelBranches, for the branch=all query path (spec.md
// section 4.7).
func (rc *Reconciler) ReconcileAll(ctx context.Context, repo *gitstore.Repo, repoName string, cfg *policy.RelayConfig, dataDir string, paths hookrunner.SandboxPaths) (map[string]*branchindex.Store, error) {
	branches, err := repo.ListBranches()
	if err != nil {
		return nil, fmt.Errorf("reconciler: list branches: %w", err)
	}

	var mu sync.Mutex
	stores := make(map[string]*branchindex.Store, len(branches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelBranches)
	for _, b := range branches {
		b := b
		g.Go(func() error {
			s, err := rc.Reconcile(gctx, repo, repoName, b, cfg, dataDir, paths)
			if err != nil {
				return err
			}
			mu.Lock()
			stores[b] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stores, nil
}
