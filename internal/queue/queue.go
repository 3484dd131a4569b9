// Package queue holds the reliable job queues the executor pool claims from.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmpty is returned by ClaimBlocking when nothing arrived before the timeout.
var ErrEmpty = errors.New("queue: empty")

type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error)
	Ack(ctx context.Context, jobID string) error
	RequeueStale(ctx context.Context, max int64) (int64, error)
}
