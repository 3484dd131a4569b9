// Package scheduler hands job scripts to a batch scheduler. Submission
// returns as soon as the scheduler accepts or rejects the job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"blast-job-service/internal/entity"
	"blast-job-service/internal/queue"
)

const maxDiagnostic = 4096

// JobName is the scheduler-visible name of a job. Grid Engine rejects names
// starting with a digit, hence the prefix.
func JobName(job entity.Job) string {
	return "blast_" + job.ID.String()
}

// Qsub submits scripts with Grid Engine's qsub, keeping the working
// directory and joining stdout with stderr.
type Qsub struct {
	bin     string
	workDir string
	timeout time.Duration
	log     zerolog.Logger
}

func NewQsub(bin, workDir string, timeout time.Duration, log zerolog.Logger) *Qsub {
	if bin == "" {
		bin = "qsub"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Qsub{
		bin:     bin,
		workDir: workDir,
		timeout: timeout,
		log:     log.With().Str("component", "scheduler").Str("scheduler", "qsub").Logger(),
	}
}

func (s *Qsub) Submit(ctx context.Context, job entity.Job, scriptPath string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.bin, "-cwd", "-j", "y", "-N", JobName(job), scriptPath)
	cmd.Dir = s.workDir
	cmd.WaitDelay = time.Second

	out, err := cmd.CombinedOutput()
	diag := truncate(strings.TrimSpace(string(out)))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("no answer within %s", s.timeout)
		}
		return &entity.SubmissionError{Scheduler: "qsub", Diagnostic: diag, Err: err}
	}

	s.log.Info().Str("job_id", job.ID.String()).Str("reply", diag).Msg("job submitted")
	return nil
}

// Queued submits by pushing the job id onto a queue drained by the executor
// pool (see package worker).
type Queued struct {
	name    string
	queue   queue.Queue
	timeout time.Duration
	log     zerolog.Logger
}

func NewQueued(name string, q queue.Queue, timeout time.Duration, log zerolog.Logger) *Queued {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Queued{
		name:    name,
		queue:   q,
		timeout: timeout,
		log:     log.With().Str("component", "scheduler").Str("scheduler", name).Logger(),
	}
}

func (s *Queued) Submit(ctx context.Context, job entity.Job, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.queue.Enqueue(ctx, job.ID.String()); err != nil {
		return &entity.SubmissionError{Scheduler: s.name, Diagnostic: truncate(err.Error()), Err: err}
	}
	s.log.Info().Str("job_id", job.ID.String()).Msg("job enqueued")
	return nil
}

func truncate(s string) string {
	if len(s) <= maxDiagnostic {
		return s
	}
	return s[:maxDiagnostic] + "..."
}
