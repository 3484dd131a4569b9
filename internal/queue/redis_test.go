package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"blast-job-service/internal/queue"
)

const (
	queueKey      = "blast:queue"
	processingKey = "blast:processing"
)

func newRedisQueue(t *testing.T) (queue.Queue, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewRedisQueue(rdb, queueKey, processingKey), mr, rdb
}

func list(t *testing.T, rdb *redis.Client, key string) []string {
	t.Helper()
	items, err := rdb.LRange(context.Background(), key, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange %s: %v", key, err)
	}
	return items
}

func TestRedisQueue_ClaimMovesToProcessingAndAckRemoves(t *testing.T) {
	q, _, rdb := newRedisQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	id, err := q.ClaimBlocking(ctx, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if id != "a" {
		t.Fatalf("expected FIFO order, got %q", id)
	}
	if got := list(t, rdb, processingKey); len(got) != 1 || got[0] != "a" {
		t.Fatalf("expected a in processing, got %v", got)
	}
	if got := list(t, rdb, queueKey); len(got) != 1 || got[0] != "b" {
		t.Fatalf("expected b still queued, got %v", got)
	}

	if err := q.Ack(ctx, "a"); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if got := list(t, rdb, processingKey); len(got) != 0 {
		t.Fatalf("expected empty processing, got %v", got)
	}
}

func TestRedisQueue_ClaimTimesOutWithErrEmpty(t *testing.T) {
	q, _, _ := newRedisQueue(t)

	_, err := q.ClaimBlocking(context.Background(), time.Second)
	if !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestRedisQueue_RequeueStaleMakesJobsClaimableAgain(t *testing.T) {
	q, _, rdb := newRedisQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = q.Enqueue(ctx, id)
	}
	for i := 0; i < 2; i++ {
		if _, err := q.ClaimBlocking(ctx, time.Second); err != nil {
			t.Fatalf("claim: %v", err)
		}
	}

	n, err := q.RequeueStale(ctx, 10)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 requeued, got %d", n)
	}
	if got := list(t, rdb, processingKey); len(got) != 0 {
		t.Fatalf("expected empty processing, got %v", got)
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		id, err := q.ClaimBlocking(ctx, time.Second)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		seen[id] = true
	}
	if !seen["a"] || !seen["b"] || !seen["c"] {
		t.Fatalf("expected a, b and c claimable, got %v", seen)
	}
}

func TestRedisQueue_RequeueStaleRespectsMax(t *testing.T) {
	q, _, rdb := newRedisQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = q.Enqueue(ctx, id)
		_, _ = q.ClaimBlocking(ctx, time.Second)
	}

	n, err := q.RequeueStale(ctx, 2)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 requeued, got %d, %v", n, err)
	}
	if got := list(t, rdb, processingKey); len(got) != 1 {
		t.Fatalf("expected 1 left in processing, got %v", got)
	}
}

func TestRedisQueue_EnqueueFailsWhenServerIsDown(t *testing.T) {
	q, mr, _ := newRedisQueue(t)
	mr.Close()

	if err := q.Enqueue(context.Background(), "a"); err == nil {
		t.Fatal("expected error from stopped server")
	}
}
