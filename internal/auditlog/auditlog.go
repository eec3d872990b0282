// Package auditlog records hook invocation history in Postgres
// (SPEC_FULL.md section 3.1): a queryable observability trail alongside the
// branch index's indexed_head, which remains the sole source of truth.
package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayhq/relay/internal/pgdb"
)

// Entry is one hook invocation record.
type Entry struct {
	RunID       uuid.UUID
	Repo        string
	Branch      string
	Kind        string // pre-commit, pre-receive, post-receive, post-update, index
	OldCommit   string
	NewCommit   string
	ExitCode    int
	DurationMS  int64
	Stderr      string // truncated
	Correlation string
	RecordedAt  time.Time
}

const maxStderr = 4096

// Repository persists Entry records (adapted from the teacher's
// common/repository RunRepository).
type Repository struct {
	db *pgdb.DB
}

func NewRepository(db *pgdb.DB) *Repository {
	return &Repository{db: db}
}

// Schema is the DDL a deployment applies once; kept alongside the
// repository rather than in a migrations framework, matching this module's
// otherwise code-first approach to the domain stack.
const Schema = `
CREATE TABLE IF NOT EXISTS hook_invocation (
	run_id       uuid PRIMARY KEY,
	repo         text NOT NULL,
	branch       text NOT NULL,
	kind         text NOT NULL,
	old_commit   text NOT NULL,
	new_commit   text NOT NULL,
	exit_code    integer NOT NULL,
	duration_ms  bigint NOT NULL,
	stderr       text NOT NULL,
	correlation  text NOT NULL,
	recorded_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS hook_invocation_repo_branch_idx ON hook_invocation (repo, branch, recorded_at DESC);
`

func (r *Repository) Record(ctx context.Context, e Entry) error {
	stderr := e.Stderr
	if len(stderr) > maxStderr {
		stderr = stderr[:maxStderr]
	}
	const query = `
		INSERT INTO hook_invocation
			(run_id, repo, branch, kind, old_commit, new_commit, exit_code, duration_ms, stderr, correlation, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		e.RunID, e.Repo, e.Branch, e.Kind, e.OldCommit, e.NewCommit,
		e.ExitCode, e.DurationMS, stderr, e.Correlation, e.RecordedAt)
	if err != nil {
		return fmt.Errorf("auditlog: record: %w", err)
	}
	return nil
}

// ListByBranch returns the most recent invocations for a (repo, branch),
// newest first, for an eventual admin/debug surface.
func (r *Repository) ListByBranch(ctx context.Context, repo, branch string, limit int) ([]Entry, error) {
	const query = `
		SELECT run_id, repo, branch, kind, old_commit, new_commit, exit_code, duration_ms, stderr, correlation, recorded_at
		FROM hook_invocation
		WHERE repo = $1 AND branch = $2
		ORDER BY recorded_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, repo, branch, limit)
	if err != nil {
		return nil, fmt.Errorf("auditlog: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.RunID, &e.Repo, &e.Branch, &e.Kind, &e.OldCommit, &e.NewCommit,
			&e.ExitCode, &e.DurationMS, &e.Stderr, &e.Correlation, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("auditlog: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
