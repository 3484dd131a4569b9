package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"blast-job-service/internal/queue"
)

// Processor runs one claimed job.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

type Pool struct {
	queue      queue.Queue
	processor  Processor
	workers    int
	claimDelay time.Duration
	log        zerolog.Logger
}

func NewPool(q queue.Queue, processor Processor, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      q,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log.With().Str("component", "pool").Logger(),
	}
}

// Run claims jobs until ctx is done, then waits for in-flight jobs.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")

	jobCh := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for jobID := range jobCh {
				err := p.processor.Process(ctx, jobID)
				if err != nil {
					p.log.Warn().Int("worker", n).Str("job_id", jobID).Err(err).Msg("process job")
				}
				if errors.Is(err, ErrInterrupted) {
					// left in processing; requeued by the next startup reaper
					continue
				}

				// Ack regardless: the job has published its output or error file.
				// A crash before this point leaves the id for the startup reaper.
				// A duplicate claim (ErrAlreadyRunning) drops one copy of the id;
				// the lock holder acks the other.
				if ackErr := p.queue.Ack(context.WithoutCancel(ctx), jobID); ackErr != nil {
					p.log.Error().Int("worker", n).Str("job_id", jobID).Err(ackErr).Msg("ack job")
				}
			}
		}(i + 1)
	}

	defer func() {
		close(jobCh)
		wg.Wait()
		p.log.Info().Msg("worker pool stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
		if err != nil {
			// timeout / ctx cancel are not fatal
			if !errors.Is(err, queue.ErrEmpty) && ctx.Err() == nil {
				p.log.Error().Err(err).Msg("claim job")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
				}
			}
			continue
		}
		select {
		case jobCh <- jobID:
		case <-ctx.Done():
			return
		}
	}
}
