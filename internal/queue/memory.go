package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for single-host deployments and tests.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []string
	processing map[string]struct{}
	notify     chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		processing: make(map[string]struct{}),
		notify:     make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	q.pending = append(q.pending, jobID)
	q.mu.Unlock()
	q.wake()
	return nil
}

func (q *MemoryQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		if id, ok := q.pop(); ok {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline:
			return "", ErrEmpty
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	delete(q.processing, jobID)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) RequeueStale(_ context.Context, max int64) (int64, error) {
	q.mu.Lock()
	var moved int64
	for id := range q.processing {
		if moved >= max {
			break
		}
		delete(q.processing, id)
		q.pending = append(q.pending, id)
		moved++
	}
	q.mu.Unlock()
	if moved > 0 {
		q.wake()
	}
	return moved, nil
}

// Len returns the number of unclaimed jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *MemoryQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return "", false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	q.processing[id] = struct{}{}
	if len(q.pending) > 0 {
		q.wake()
	}
	return id, true
}

func (q *MemoryQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
