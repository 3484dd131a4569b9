package queue_test

import (
	"context"
	"testing"
	"time"

	"blast-job-service/internal/queue"
)

func TestMemoryQueue_FIFOAndAck(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()

	for _, id := range []string{"a", "b"} {
		if err := q.Enqueue(ctx, id); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	got, err := q.ClaimBlocking(ctx, time.Second)
	if err != nil || got != "a" {
		t.Fatalf("expected a, got %q err=%v", got, err)
	}
	if err := q.Ack(ctx, got); err != nil {
		t.Fatalf("ack: %v", err)
	}

	got, err = q.ClaimBlocking(ctx, time.Second)
	if err != nil || got != "b" {
		t.Fatalf("expected b, got %q err=%v", got, err)
	}
}

func TestMemoryQueue_ClaimTimesOut(t *testing.T) {
	q := queue.NewMemoryQueue()

	_, err := q.ClaimBlocking(context.Background(), 20*time.Millisecond)
	if err != queue.ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestMemoryQueue_ClaimWakesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Enqueue(ctx, "late")
	}()

	got, err := q.ClaimBlocking(ctx, 2*time.Second)
	if err != nil || got != "late" {
		t.Fatalf("expected late, got %q err=%v", got, err)
	}
}

func TestMemoryQueue_RequeueStale(t *testing.T) {
	ctx := context.Background()
	q := queue.NewMemoryQueue()
	_ = q.Enqueue(ctx, "x")

	if _, err := q.ClaimBlocking(ctx, time.Second); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after claim, got %d", q.Len())
	}

	n, err := q.RequeueStale(ctx, 10)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 requeued, got %d err=%v", n, err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 pending, got %d", q.Len())
	}
}
