// Package handlers implements the HTTP verb surface (spec.md section 4.7):
// DISCOVER, READ, WRITE, DELETE, QUERY, one file per verb, mirroring the
// teacher's one-handler-struct-per-resource layout
// (cmd/orchestrator/handlers).
package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relayhq/relay/internal/auditlog"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/ids"
	"github.com/relayhq/relay/internal/logging"
	"github.com/relayhq/relay/internal/policy"
)

// Handler wraps the Container every verb handler needs.
type Handler struct {
	C *httpapi.Container
}

func New(c *httpapi.Container) *Handler {
	return &Handler{C: c}
}

// runHook invokes the hook configured for kind (if any), reading its script
// from readAt (the commit to read the script from: the base head for
// pre-commit/pre-receive, since the would-be tree has no commit object yet;
// the new head for post-receive/post-update). Returns (ran=false, nil) when
// the repository has no script for that kind — spec.md section 4.3's
// "no entry -> no-op accept". Successful and failed invocations alike have
// their output logged, tagged with the script path, and are recorded to the
// audit log, when one is configured.
func (h *Handler) runHook(ctx context.Context, repo *gitstore.Repo, repoName string, cfg *policy.RelayConfig, kind string, readAt gitstore.Hash, cctx hookrunner.CommitContext, paths hookrunner.SandboxPaths) (ran bool, err error) {
	scriptPath, ok := cfg.HookPathFor(kind)
	if !ok {
		return false, nil
	}
	scriptBody, err := repo.ReadAt(readAt, scriptPath)
	if err != nil {
		return true, err
	}

	result, runErr := h.C.Runner.Run(ctx, scriptPath, scriptBody, cctx, repo.Path(), paths)
	if result != nil {
		h.C.Logger.Info("httpapi: hook output", "script", scriptPath, "kind", kind, "repo", repoName, "branch", cctx.Branch, "stdout", result.Stdout, "stderr", result.Stderr)
	}
	h.recordHook(ctx, repoName, cctx, kind, result)
	return true, runErr
}

func (h *Handler) recordHook(ctx context.Context, repoName string, cctx hookrunner.CommitContext, kind string, result *hookrunner.Result) {
	if h.C.Audit == nil || result == nil {
		return
	}
	entry := auditlog.Entry{
		RunID:       uuid.MustParse(ids.NewRunID()),
		Repo:        repoName,
		Branch:      cctx.Branch,
		Kind:        kind,
		OldCommit:   cctx.OldCommit,
		NewCommit:   cctx.NewCommit,
		ExitCode:    result.ExitCode,
		DurationMS:  result.Duration.Milliseconds(),
		Stderr:      result.Stderr,
		Correlation: logging.CorrelationIDFromContext(ctx),
		RecordedAt:  time.Now(),
	}
	if err := h.C.Audit.Record(ctx, entry); err != nil {
		h.C.Logger.Error("httpapi: audit record failed", "repo", repoName, "branch", cctx.Branch, "kind", kind, "error", err)
	}
}
