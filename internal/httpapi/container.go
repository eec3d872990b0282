// Package httpapi wires the HTTP verb surface (spec.md section 4.7) on top
// of every other domain package, following the teacher's
// container/routes/handlers layering (cmd/orchestrator/container,
// cmd/orchestrator/routes, cmd/orchestrator/handlers).
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/relayhq/relay/internal/auditlog"
	"github.com/relayhq/relay/internal/blobstore"
	"github.com/relayhq/relay/internal/config"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/httpapi/ratelimit"
	"github.com/relayhq/relay/internal/logging"
	"github.com/relayhq/relay/internal/peersync"
	"github.com/relayhq/relay/internal/pgdb"
	"github.com/relayhq/relay/internal/policy"
	"github.com/relayhq/relay/internal/queue"
	"github.com/relayhq/relay/internal/reconciler"
	"github.com/relayhq/relay/internal/reconcilelock"
	"github.com/relayhq/relay/internal/rediscli"
)

// Container holds every singleton the HTTP handlers need, built once at
// startup (mirrors cmd/orchestrator/container.Container's
// bottom-up-dependencies construction).
type Container struct {
	Config *config.Config
	Logger *logging.Logger

	Runner        *hookrunner.Runner
	Reconciler    *reconciler.Reconciler
	Queue         queue.Queue
	PeerScheduler *peersync.Scheduler
	Limiter       *ratelimit.Limiter
	Locker        *reconcilelock.Locker
	Audit         *auditlog.Repository

	repoMu sync.Mutex
	repos  map[string]*gitstore.Repo
}

// NewContainer builds every dependency from cfg, following
// bootstrap->container sequencing (SPEC_FULL.md section 2).
func NewContainer(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
		repos:  map[string]*gitstore.Repo{},
	}

	c.Runner = hookrunner.New(cfg.Hook.InterpreterPath, time.Duration(cfg.Hook.TimeoutSeconds)*time.Second)
	c.Reconciler = reconciler.New(c.Runner)

	var rc *rediscli.Client
	if cfg.Redis.Enabled {
		rc = rediscli.New(cfg.Redis.Addr, "", 0)
		c.Locker = reconcilelock.New(rc, 30*time.Second)
		c.Limiter = ratelimit.New(rc, 60, time.Minute)
	} else {
		c.Locker = reconcilelock.New(nil, 30*time.Second)
		c.Limiter = ratelimit.New(nil, 60, time.Minute)
	}

	// The global blob tier itself is only ever read/written inside the
	// sandboxed child process (cmd/relay-hook-runner); this process just
	// needs the directory to exist before handing GlobalBlobsDir to a hook
	// invocation (SandboxPaths, below).
	if err := os.MkdirAll(cfg.Blob.GlobalDir, 0o755); err != nil {
		return nil, fmt.Errorf("httpapi: create global blobs dir: %w", err)
	}

	if rc != nil {
		c.Queue = queue.NewRedisQueue(rc)
	} else {
		c.Queue = queue.NewMemoryQueue(log)
	}

	if cfg.Postgres.Enabled {
		db, err := pgdb.New(ctx, cfg.DatabaseURL(), log)
		if err != nil {
			return nil, fmt.Errorf("httpapi: connect postgres: %w", err)
		}
		c.Audit = auditlog.NewRepository(db)
	}

	return c, nil
}

// SetPusher finishes peer-sync wiring once cmd/relay-server has built the
// Pusher (it depends on the Container itself to replay commits via
// internal/gitstore, so it cannot be constructed inside NewContainer).
func (c *Container) SetPusher(pusher peersync.Pusher) {
	c.PeerScheduler = peersync.NewScheduler(c.Queue, pusher, c.Logger, time.Duration(c.Config.Peer.DebounceSeconds)*time.Second)
}

// OpenRepo returns (opening if necessary) the bare repository named name
// under the configured repo root.
func (c *Container) OpenRepo(name string) (*gitstore.Repo, error) {
	c.repoMu.Lock()
	defer c.repoMu.Unlock()
	if r, ok := c.repos[name]; ok {
		return r, nil
	}
	r, err := gitstore.Open(c.Config.Git.RepoPath, name)
	if err != nil {
		return nil, err
	}
	c.repos[name] = r
	return r, nil
}

// ListRepoNames enumerates every "<name>.git" directory under the repo
// root, for the DISCOVER verb.
func (c *Container) ListRepoNames() ([]string, error) {
	entries, err := os.ReadDir(c.Config.Git.RepoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("httpapi: list repos: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".git") {
			names = append(names, strings.TrimSuffix(e.Name(), ".git"))
		}
	}
	return names, nil
}

// LoadPolicy reads and parses .relay.yaml from branch's current tree. A
// missing file yields an empty (permissive) config, matching Parse(nil)'s
// "no rule configured" behavior.
func (c *Container) LoadPolicy(repo *gitstore.Repo, branch string) (*policy.RelayConfig, error) {
	data, err := repo.Read(branch, ".relay.yaml")
	if err != nil {
		if isNoSuchErr(err) {
			return policy.Parse(nil)
		}
		return nil, err
	}
	return policy.Parse(data)
}

// LoadIpfsConfig reads ipfs.yaml from branch's current tree, returning both
// the parsed config and its raw bytes (the latter piped to
// cmd/relay-hook-runner, which re-parses it inside the sandbox's process).
func (c *Container) LoadIpfsConfig(repo *gitstore.Repo, branch string) (*blobstore.IpfsConfig, []byte, error) {
	data, err := repo.Read(branch, "ipfs.yaml")
	if err != nil {
		if isNoSuchErr(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	cfg, err := blobstore.ParseIpfsConfig(data)
	if err != nil {
		return nil, nil, err
	}
	return cfg, data, nil
}

func isNoSuchErr(err error) bool {
	return errors.Is(err, gitstore.ErrNoSuchRef) || errors.Is(err, gitstore.ErrNoSuchPath)
}

// SandboxPaths builds the hookrunner.SandboxPaths a hook invocation for
// repo/branch needs.
func (c *Container) SandboxPaths(repo *gitstore.Repo, repoName string, quotaBytes int64, ipfsRaw []byte) hookrunner.SandboxPaths {
	paths := hookrunner.SandboxPaths{
		DataDir:        repo.DataDir(),
		GlobalBlobsDir: c.Config.Blob.GlobalDir,
		QuotaBytes:     quotaBytes,
		RepoName:       repoName,
		IpfsConfig:     ipfsRaw,
	}
	if c.Config.Redis.Enabled {
		paths.RedisAddr = c.Config.Redis.Addr
	}
	return paths
}
