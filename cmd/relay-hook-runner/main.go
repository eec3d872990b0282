// Command relay-hook-runner is the sandboxed child process spawned once per
// hook invocation by internal/hookrunner.Runner (spec.md section 4.4). It
// reads an hookrunner.Invocation as JSON from stdin, builds a locked-down
// Lua VM via internal/sandbox, and runs the hook script body against it.
// Exit code 0 means the hook accepted the change; any other code (with the
// failure written to stderr) means the parent wraps it in a
// hookrunner.RejectedError.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/relayhq/relay/internal/blobstore"
	"github.com/relayhq/relay/internal/branchindex"
	"github.com/relayhq/relay/internal/cache"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/rediscli"
	"github.com/relayhq/relay/internal/sandbox"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("relay-hook-runner: read stdin: %w", err)
	}

	var inv hookrunner.Invocation
	if err := json.Unmarshal(raw, &inv); err != nil {
		return fmt.Errorf("relay-hook-runner: decode invocation: %w", err)
	}

	cfg, err := buildConfig(inv)
	if err != nil {
		return err
	}

	L := sandbox.New(cfg)
	defer L.Close()

	if err := L.DoString(string(inv.ScriptBody)); err != nil {
		return fmt.Errorf("%s: %v", inv.ScriptPath, err)
	}
	return nil
}

// buildConfig resolves the filesystem and service locations
// inv.Paths describes into a sandbox.Config. GIT_DIR (the allowlisted env
// var) locates the bare repository; everything else comes from inv.Paths,
// which traveled over stdin alongside the Commit Context.
func buildConfig(inv hookrunner.Invocation) (sandbox.Config, error) {
	gitDir := os.Getenv("GIT_DIR")
	if gitDir == "" {
		gitDir = inv.Context.RepoPath
	}
	if gitDir == "" {
		return sandbox.Config{}, fmt.Errorf("relay-hook-runner: no GIT_DIR")
	}
	root := filepath.Dir(gitDir)
	name := strings.TrimSuffix(filepath.Base(gitDir), ".git")

	repo, err := gitstore.Open(root, name)
	if err != nil {
		return sandbox.Config{}, fmt.Errorf("relay-hook-runner: open repo: %w", err)
	}

	dataDir := inv.Paths.DataDir
	if dataDir == "" {
		dataDir = repo.DataDir()
	}
	branchHash := gitstore.BranchHash(inv.Context.Branch)

	index, err := branchindex.Open(dataDir, inv.Paths.RepoName, inv.Context.Branch)
	if err != nil {
		return sandbox.Config{}, fmt.Errorf("relay-hook-runner: open branch index: %w", err)
	}

	var presence cache.Cache
	if inv.Paths.RedisAddr != "" {
		presence = cache.NewRedisCache(rediscli.New(inv.Paths.RedisAddr, "", 0))
	}
	blobs := blobstore.New(inv.Paths.GlobalBlobsDir, presence)

	var ipfsCfg *blobstore.IpfsConfig
	if len(inv.Paths.IpfsConfig) > 0 {
		ipfsCfg, err = blobstore.ParseIpfsConfig(inv.Paths.IpfsConfig)
		if err != nil {
			return sandbox.Config{}, fmt.Errorf("relay-hook-runner: parse ipfs.yaml: %w", err)
		}
	}

	return sandbox.Config{
		Context:    inv.Context,
		BranchDir:  filepath.Join(dataDir, "branches", branchHash),
		RepoDir:    filepath.Join(dataDir, "blobs"),
		Index:      index,
		Blobs:      blobs,
		Repo:       repo,
		RepoName:   inv.Paths.RepoName,
		QuotaBytes: inv.Paths.QuotaBytes,
		Notifier:   blobstore.NoopPinNotifier{},
		IpfsCfg:    ipfsCfg,
	}, nil
}
