package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/httpapi/middleware"
	"github.com/relayhq/relay/internal/peersync"
	"github.com/relayhq/relay/internal/policy"
)

// Write handles PUT (spec.md section 4.7): Policy Engine on the would-be
// tree, pre-commit, commit, post-receive, peer sync.
func (h *Handler) Write(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, fmt.Errorf("%w: read body: %v", httpapi.ErrBadRequest, err))
	}
	return h.applyChange(c, gitstore.FileChange{Path: trimmedPath(c), Content: body})
}

// Delete handles DELETE: identical to Write with a deletion change
// (spec.md section 4.7).
func (h *Handler) Delete(c echo.Context) error {
	return h.applyChange(c, gitstore.FileChange{Path: trimmedPath(c), Content: nil})
}

func trimmedPath(c echo.Context) string {
	return strings.TrimPrefix(c.Request().URL.Path, "/")
}

func (h *Handler) applyChange(c echo.Context, change gitstore.FileChange) error {
	repoName := middleware.Repo(c)
	branch := middleware.Branch(c)
	if repoName == "" || change.Path == "" {
		return httpapi.Fail(c, h.C.Logger, fmt.Errorf("%w: repo and path are required", httpapi.ErrBadRequest))
	}

	ctx := c.Request().Context()

	repo, err := h.C.OpenRepo(repoName)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}
	cfg, err := h.C.LoadPolicy(repo, branch)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}

	current, err := repo.Head(branch)
	if err != nil && !errors.Is(err, gitstore.ErrNoSuchRef) {
		return httpapi.Fail(c, h.C.Logger, err)
	}

	verified, signerKeyPath := h.verifySignature(c, change)
	decision := policy.Evaluate(cfg, branch, verified, signerKeyPath)
	if rejErr := decision.AsError(); rejErr != nil {
		return httpapi.Fail(c, h.C.Logger, rejErr)
	}

	files := map[string]string{change.Path: ""}
	if change.Content != nil {
		files[change.Path] = base64.StdEncoding.EncodeToString(change.Content)
	}

	cctx := hookrunner.CommitContext{
		OldCommit:  string(current),
		RefName:    "refs/heads/" + branch,
		Branch:     branch,
		Files:      files,
		RepoPath:   repo.Path(),
		IsVerified: verified,
	}

	quotaBytes, ipfsRaw := h.loadQuotaAndIpfs(repo, branch, cfg)
	paths := h.C.SandboxPaths(repo, repoName, quotaBytes, ipfsRaw)

	if current != "" {
		if ran, err := h.runHook(ctx, repo, repoName, cfg, "pre-commit", current, cctx, paths); ran && err != nil {
			return httpapi.Fail(c, h.C.Logger, err)
		}
	}

	newHead, err := repo.Commit(branch, string(current), "relay", "relay write: "+change.Path, []gitstore.FileChange{change})
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}

	cctx.NewCommit = string(newHead)
	if ran, err := h.runHook(ctx, repo, repoName, cfg, "post-receive", newHead, cctx, paths); ran && err != nil {
		h.C.Logger.Error("httpapi: post-receive failed", "repo", repoName, "branch", branch, "error", err)
	}

	loopMarker := ""
	if middleware.LoopSuppressed(c) {
		loopMarker = "1"
	}
	h.schedulePeerSync(context.WithoutCancel(ctx), repoName, branch, cfg, loopMarker)

	return c.JSON(http.StatusOK, map[string]any{
		"repo":   repoName,
		"branch": branch,
		"path":   change.Path,
		"head":   string(newHead),
	})
}

func (h *Handler) loadQuotaAndIpfs(repo *gitstore.Repo, branch string, cfg *policy.RelayConfig) (quotaBytes int64, ipfsRaw []byte) {
	_, raw, err := h.C.LoadIpfsConfig(repo, branch)
	if err != nil {
		return cfg.Quota.Bytes, nil
	}
	return cfg.Quota.Bytes, raw
}

// verifySignature checks an optional detached SSH signature carried on the
// request (X-Relay-Signature, base64; X-Relay-Signer-Key, the repo-relative
// path to the signer's public key), over the change's path and content.
// Absent headers verify as unsigned, which Evaluate treats as "no
// signature" — acceptable unless the branch's rule requireSigned.
func (h *Handler) verifySignature(c echo.Context, change gitstore.FileChange) (verified bool, signerKeyPath string) {
	sigB64 := c.Request().Header.Get("X-Relay-Signature")
	keyPath := c.Request().Header.Get("X-Relay-Signer-Key")
	if sigB64 == "" || keyPath == "" {
		return false, ""
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, ""
	}
	repoName := middleware.Repo(c)
	branch := middleware.Branch(c)
	repo, err := h.C.OpenRepo(repoName)
	if err != nil {
		return false, ""
	}
	keyLine, err := repo.Read(branch, keyPath)
	if err != nil {
		return false, ""
	}
	payload := append([]byte(change.Path+"\n"), change.Content...)
	if _, err := policy.VerifyCommit(keyLine, payload, sig); err != nil {
		return false, ""
	}
	return true, keyPath
}

func (h *Handler) schedulePeerSync(ctx context.Context, repoName, branch string, cfg *policy.RelayConfig, loopMarker string) {
	if h.C.PeerScheduler == nil {
		return
	}
	if !peersync.ShouldAutoPush(branch, cfg.Git.AutoPush.Branches, loopMarker) {
		return
	}
	for _, peer := range cfg.Git.AutoPush.OriginList {
		h.C.PeerScheduler.Schedule(ctx, peersync.Job{Repo: repoName, Branch: branch, Peer: peer})
	}
}

