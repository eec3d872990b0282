package hookrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// SandboxPaths carries the filesystem and blob-tier locations
// cmd/relay-hook-runner needs to build its sandbox.Config. These travel over
// stdin rather than the process environment because the child's env is
// restricted to the OLD_COMMIT/NEW_COMMIT/REFNAME/BRANCH/GIT_DIR allowlist
// (spec.md section 4.3) and carries no service configuration.
type SandboxPaths struct {
	DataDir        string `json:"data_dir"`
	GlobalBlobsDir string `json:"global_blobs_dir"`
	QuotaBytes     int64  `json:"quota_bytes"`
	RepoName       string `json:"repo_name"`
	IpfsConfig     []byte `json:"ipfs_config,omitempty"`
	// RedisAddr, when set, lets the child build its own blob-tier presence
	// cache (spec.md section 3.1). Empty means disk-only.
	RedisAddr string `json:"redis_addr,omitempty"`
}

// Invocation is what the Hook Runtime writes to cmd/relay-hook-runner's
// stdin: the Commit Context, the hook script's already-extracted body (read
// from internal/gitstore by the parent, which holds repo access the
// sandboxed child never gets), and the paths its sandbox needs.
type Invocation struct {
	Context    CommitContext `json:"context"`
	ScriptPath string        `json:"script_path"`
	ScriptBody []byte        `json:"script_body"`
	Paths      SandboxPaths  `json:"paths"`
}

// Result is the child's only channel back besides its exit code: captured
// stdout/stderr. The HTTP write path logs it via internal/logging and, when
// configured, records it to internal/auditlog; the JIT reconciler discards
// it.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner spawns cmd/relay-hook-runner once per hook invocation.
type Runner struct {
	// BinaryPath is the path to the built relay-hook-runner binary.
	BinaryPath string
	Timeout    time.Duration
}

func New(binaryPath string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{BinaryPath: binaryPath, Timeout: timeout}
}

// env is the allowlist spec.md section 4.3 specifies, plus a fixed PATH;
// nothing else from the parent's environment is passed.
func env(old, new, refname, branch, gitDir string) []string {
	return []string{
		"OLD_COMMIT=" + old,
		"NEW_COMMIT=" + new,
		"REFNAME=" + refname,
		"BRANCH=" + branch,
		"GIT_DIR=" + gitDir,
		"PATH=/usr/bin:/bin",
	}
}

// stripShebang removes a leading "#!..." line, tolerating repo-owned
// scripts that declare an interpreter shebang for editor/tooling purposes
// (mirrors the original implementation's tolerance of a node shebang).
func stripShebang(body []byte) []byte {
	if !bytes.HasPrefix(body, []byte("#!")) {
		return body
	}
	if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
		return body[idx+1:]
	}
	return nil
}

// Run invokes the hook script against cctx, with gitDir passed through for
// the child's restricted environment (never the full repo path otherwise —
// spec.md section 3: repo_path is "sandbox-internal use only").
func (r *Runner) Run(ctx context.Context, scriptPath string, scriptBody []byte, cctx CommitContext, gitDir string, paths SandboxPaths) (*Result, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.BinaryPath)
	cmd.Env = env(cctx.OldCommit, cctx.NewCommit, cctx.RefName, cctx.Branch, gitDir)

	inv := Invocation{
		Context:    cctx,
		ScriptPath: scriptPath,
		ScriptBody: stripShebang(scriptBody),
		Paths:      paths,
	}
	stdin, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("hookrunner: marshal invocation: %w", err)
	}
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration}, ErrTimeout
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(runErr, &exitErr); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("hookrunner: spawn %s: %w", r.BinaryPath, runErr)
		}
	}

	result := &Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration}
	if exitCode != 0 {
		return result, &RejectedError{Stderr: strings.TrimSpace(stderr.String())}
	}
	return result, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
