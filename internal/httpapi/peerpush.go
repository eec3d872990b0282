package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/peersync"
)

// HTTPPusher implements peersync.Pusher by replaying a branch's missing
// commits against a peer's WRITE endpoint, one HTTP request per changed
// path (SPEC_FULL.md section 4.8). It tracks the last head successfully
// pushed to each (repo, branch, peer) in-process; a freshly started
// instance replays the full tree on its first push for a given peer, since
// Zero (gitstore's "no commit" sentinel) is the starting point.
type HTTPPusher struct {
	container *Container
	client    *http.Client

	mu   sync.Mutex
	sent map[string]gitstore.Hash // key: repo/branch/peer
}

func NewHTTPPusher(c *Container) *HTTPPusher {
	return &HTTPPusher{
		container: c,
		client:    &http.Client{Timeout: 30 * time.Second},
		sent:      map[string]gitstore.Hash{},
	}
}

func pushKey(repo, branch, peer string) string { return repo + "/" + branch + "/" + peer }

// Push replays repo/branch's commits the peer is missing, inferred as the
// diff between the last head this Pusher successfully pushed to peer and
// repo's current head.
func (p *HTTPPusher) Push(ctx context.Context, repo, branch, peerOrigin string) error {
	r, err := p.container.OpenRepo(repo)
	if err != nil {
		return fmt.Errorf("peerpush: open %s: %w", repo, err)
	}
	head, err := r.Head(branch)
	if err != nil {
		return fmt.Errorf("peerpush: head %s/%s: %w", repo, branch, err)
	}

	key := pushKey(repo, branch, peerOrigin)
	p.mu.Lock()
	last, ok := p.sent[key]
	p.mu.Unlock()
	if !ok {
		last = gitstore.Zero
	}
	if last == head {
		return nil
	}

	changes, err := r.DiffNames(last, head)
	if err != nil {
		return fmt.Errorf("peerpush: diff %s/%s: %w", repo, branch, err)
	}

	for _, ch := range changes {
		if err := p.replay(ctx, r, repo, branch, peerOrigin, head, ch); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.sent[key] = head
	p.mu.Unlock()
	return nil
}

func (p *HTTPPusher) replay(ctx context.Context, r *gitstore.Repo, repo, branch, peerOrigin string, head gitstore.Hash, ch gitstore.Change) error {
	method := http.MethodPut
	var body []byte
	if ch.Status == gitstore.StatusDeleted {
		method = http.MethodDelete
	} else {
		content, err := r.ReadAt(head, ch.Path)
		if err != nil {
			return fmt.Errorf("peerpush: read %s@%s: %w", ch.Path, head, err)
		}
		body = content
	}

	url := peerOrigin + "/" + ch.Path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("peerpush: build request: %w", err)
	}
	req.Header.Set("X-Relay-Repo", repo)
	req.Header.Set("X-Relay-Branch", branch)
	req.Header.Set(peersync.LoopMarkerHeader, "1")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("peerpush: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("peerpush: %s %s: peer returned %d", method, url, resp.StatusCode)
	}
	return nil
}
