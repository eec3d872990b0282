// Package queue provides the peer-push fan-out topic (spec.md section 4.8),
// adapted from the teacher's common/queue MemoryQueue plus the
// RPush-to-Redis-list pattern in common/worker/completion.go: in-memory when
// no Redis is configured, Redis-list-backed (durable across restarts)
// otherwise — the same memory/Redis duality the teacher's stack offers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/relayhq/relay/internal/logging"
	"github.com/relayhq/relay/internal/rediscli"
)

// Queue is a topic-based job queue: Push enqueues, Pop blocks for the next
// job on any of the given topics.
type Queue interface {
	Push(ctx context.Context, topic string, payload []byte) error
	Pop(ctx context.Context, timeout time.Duration, topics ...string) (topic string, payload []byte, ok bool, err error)
	Close() error
}

// MemoryQueue is an in-process, channel-backed Queue for single-instance
// deployments (no Redis configured).
type MemoryQueue struct {
	mu     sync.Mutex
	topics map[string]chan []byte
	log    *logging.Logger
}

func NewMemoryQueue(log *logging.Logger) *MemoryQueue {
	return &MemoryQueue{topics: map[string]chan []byte{}, log: log}
}

func (q *MemoryQueue) chanFor(topic string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.topics[topic]
	if !ok {
		ch = make(chan []byte, 1000)
		q.topics[topic] = ch
	}
	return ch
}

func (q *MemoryQueue) Push(ctx context.Context, topic string, payload []byte) error {
	ch := q.chanFor(topic)
	select {
	case ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.log.Warn("queue full, dropping job", "topic", topic)
		return nil
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration, topics ...string) (string, []byte, bool, error) {
	cases := make([]chan []byte, len(topics))
	for i, t := range topics {
		cases[i] = q.chanFor(t)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// A small fixed fan-in: Relay's topic count per process is tiny
	// (one per repo), so polling each channel without blocking, then
	// sleeping 20ms between rounds, is simpler than reflect.Select here.
	for {
		for i, ch := range cases {
			select {
			case payload := <-ch:
				return topics[i], payload, true, nil
			default:
			}
		}
		select {
		case <-timer.C:
			return "", nil, false, nil
		case <-ctx.Done():
			return "", nil, false, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) Close() error { return nil }

// RedisQueue is a Redis-list-backed Queue, durable across process restarts.
type RedisQueue struct {
	client *rediscli.Client
}

func NewRedisQueue(client *rediscli.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func (q *RedisQueue) Push(ctx context.Context, topic string, payload []byte) error {
	return q.client.RPush(ctx, listKey(topic), string(payload))
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration, topics ...string) (string, []byte, bool, error) {
	keys := make([]string, len(topics))
	for i, t := range topics {
		keys[i] = listKey(t)
	}
	key, value, ok, err := q.client.BLPop(ctx, timeout, keys...)
	if err != nil || !ok {
		return "", nil, false, err
	}
	return topicFromKey(key), []byte(value), true, nil
}

func (q *RedisQueue) Close() error { return nil }

func listKey(topic string) string    { return "queue:" + topic }
func topicFromKey(key string) string { return key[len("queue:"):] }
