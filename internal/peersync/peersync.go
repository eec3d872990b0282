// Package peersync implements the post-receive peer auto-push loop
// (spec.md section 4.8): debounced, retried fan-out to configured peers
// with loop suppression via the X-Relay-Sync-In-Progress header.
package peersync

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/relayhq/relay/internal/logging"
	"github.com/relayhq/relay/internal/queue"
)

// LoopMarkerHeader is the HTTP header an outbound push sets, and an inbound
// WRITE checks, to suppress auto-push loops between mutually peered nodes.
const LoopMarkerHeader = "X-Relay-Sync-In-Progress"

// Job is one queued push: replay repo/branch's new commits against peer.
type Job struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Peer   string `json:"peer"` // origin URL
}

func topic(repo string) string { return "peer-push:" + repo }

// Pusher executes the actual HTTP push of missing commits to a peer.
// Implemented at the httpapi/gitstore boundary and injected here so this
// package stays free of an HTTP client dependency on itself.
type Pusher interface {
	Push(ctx context.Context, repo, branch, peerOrigin string) error
}

// Scheduler owns the debounce window, the retry/backoff state, and the
// queue drain loop; adapted from the teacher's common/worker completion
// pattern (signal via queue, drain with a small pool) plus
// common/ratelimit's key-per-window approach for backoff/debounce state.
type Scheduler struct {
	q      queue.Queue
	pusher Pusher
	log    *logging.Logger

	debounce time.Duration

	mu       sync.Mutex
	pending  map[string]*time.Timer // key: repo/branch/peer
	attempts map[string]int
}

func NewScheduler(q queue.Queue, pusher Pusher, log *logging.Logger, debounce time.Duration) *Scheduler {
	return &Scheduler{
		q:        q,
		pusher:   pusher,
		log:      log,
		debounce: debounce,
		pending:  map[string]*time.Timer{},
		attempts: map[string]int{},
	}
}

func jobKey(j Job) string { return j.Repo + "/" + j.Branch + "/" + j.Peer }

// Schedule debounces one push per (repo, branch, peer): repeated calls
// within the debounce window coalesce into a single enqueue.
func (s *Scheduler) Schedule(ctx context.Context, job Job) {
	key := jobKey(job)

	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.pending[key]; ok {
		t.Stop()
	}
	s.pending[key] = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		delete(s.pending, key)
		s.mu.Unlock()

		payload, err := json.Marshal(job)
		if err != nil {
			s.log.Error("peersync: marshal job", "error", err)
			return
		}
		if err := s.q.Push(ctx, topic(job.Repo), payload); err != nil {
			s.log.Error("peersync: enqueue push", "repo", job.Repo, "branch", job.Branch, "error", err)
		}
	})
}

// Backoff is the fixed schedule spec.md section 4.8 specifies: 2s, 4s, 8s,
// capped at 60s, up to 5 attempts.
func Backoff(attempt int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

const maxAttempts = 5

// Drain runs a single drain loop: pop a job, attempt the push, retry with
// backoff on failure up to maxAttempts, then drop.
func (s *Scheduler) Drain(ctx context.Context, topics ...string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		t, payload, ok, err := s.q.Pop(ctx, time.Second, topics...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("peersync: pop", "error", err)
			continue
		}
		if !ok {
			continue
		}
		var job Job
		if err := json.Unmarshal(payload, &job); err != nil {
			s.log.Error("peersync: decode job", "topic", t, "error", err)
			continue
		}
		s.attemptPush(ctx, job)
	}
}

func (s *Scheduler) attemptPush(ctx context.Context, job Job) {
	key := jobKey(job)
	if err := s.pusher.Push(ctx, job.Repo, job.Branch, job.Peer); err != nil {
		s.mu.Lock()
		s.attempts[key]++
		n := s.attempts[key]
		s.mu.Unlock()

		if n >= maxAttempts {
			s.log.Error("peersync: push failed, giving up", "repo", job.Repo, "branch", job.Branch, "peer", job.Peer, "attempts", n, "error", err)
			s.mu.Lock()
			delete(s.attempts, key)
			s.mu.Unlock()
			return
		}

		delay := Backoff(n)
		s.log.Warn("peersync: push failed, retrying", "repo", job.Repo, "branch", job.Branch, "peer", job.Peer, "attempt", n, "retry_in", delay, "error", err)
		time.AfterFunc(delay, func() {
			payload, merr := json.Marshal(job)
			if merr != nil {
				return
			}
			_ = s.q.Push(context.Background(), topic(job.Repo), payload)
		})
		return
	}

	s.mu.Lock()
	delete(s.attempts, key)
	s.mu.Unlock()
}

// ShouldAutoPush reports whether branch is in autoPushBranches and the
// inbound request did not carry the loop-suppression marker.
func ShouldAutoPush(branch string, autoPushBranches []string, inProgressHeader string) bool {
	if inProgressHeader != "" {
		return false
	}
	for _, b := range autoPushBranches {
		if b == branch {
			return true
		}
	}
	return false
}
