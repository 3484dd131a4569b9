package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"blast-job-service/internal/workspace"
)

const maxLog = 64 << 10

// ErrInterrupted means the job was stopped by shutdown and should be retried.
var ErrInterrupted = errors.New("worker: job interrupted")

// ErrAlreadyRunning means another executor holds the job's script lock.
var ErrAlreadyRunning = errors.New("worker: job already running")

// Executor runs one job script to completion. The script publishes its own
// output or error file; the executor only writes the error file when the
// script could not report failure itself (killed, timed out, missing shell).
type Executor struct {
	ws      *workspace.Manager
	shell   string
	timeout time.Duration
	log     zerolog.Logger
}

func NewExecutor(ws *workspace.Manager, timeout time.Duration, log zerolog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 2 * time.Hour
	}
	return &Executor{
		ws:      ws,
		shell:   "/bin/sh",
		timeout: timeout,
		log:     log.With().Str("component", "executor").Logger(),
	}
}

func (e *Executor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := e.ws.ParseToken(jobID)
	if err != nil {
		e.log.Error().Str("job_id", jobID).Err(err).Msg("parse job id")
		return err
	}
	paths := e.ws.PathsFor(id)
	log := e.log.With().Str("job_id", jobID).Logger()

	if finished(paths) {
		log.Info().Msg("job already finished, skipping")
		return nil
	}
	if ok, err := workspace.Exists(paths.Script); err != nil || !ok {
		return fmt.Errorf("job %s: script missing: %v", jobID, err)
	}

	// A job id can be claimed twice (reaper at startup, redelivery). The lock
	// on the script is released by the kernel if this process dies.
	lock := flock.New(paths.Script)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("job %s: lock script: %w", jobID, err)
	}
	if !locked {
		log.Info().Msg("job is running elsewhere, skipping")
		return ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Msg("unlock script")
		}
	}()
	// The holder may have finished between the first check and the lock.
	if finished(paths) {
		log.Info().Msg("job already finished, skipping")
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, e.shell, paths.Script)
	cmd.Dir = e.ws.Root()
	cmd.Stdout = &limitedWriter{buf: &out, n: maxLog}
	cmd.Stderr = cmd.Stdout
	cmd.WaitDelay = 5 * time.Second

	log.Info().Str("state", "running").Msg("job started")
	runErr := cmd.Run()
	duration := time.Since(start).Milliseconds()

	if runErr == nil {
		log.Info().Str("state", "complete").Int64("duration_ms", duration).Msg("job finished")
		return nil
	}

	if ctx.Err() != nil {
		log.Warn().Err(runErr).Msg("job interrupted by shutdown")
		return fmt.Errorf("%w: %v", ErrInterrupted, runErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("job exceeded %s: %w", e.timeout, runErr)
	}
	if ok, _ := workspace.Exists(paths.Error); !ok {
		msg := fmt.Sprintf("%v\n%s", runErr, out.String())
		if werr := e.ws.WriteFile(context.WithoutCancel(ctx), paths.Error, []byte(msg), 0o644); werr != nil {
			log.Error().Err(werr).Msg("write error file")
		}
	}
	log.Warn().Str("state", "failed").Int64("duration_ms", duration).Err(runErr).Msg("job failed")
	return runErr
}

// finished reports whether the job already published its output or error.
func finished(paths workspace.Paths) bool {
	for _, p := range []string{paths.Output, paths.Error} {
		if ok, _ := workspace.Exists(p); ok {
			return true
		}
	}
	return false
}

type limitedWriter struct {
	buf *bytes.Buffer
	n   int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if room := w.n - w.buf.Len(); room > 0 {
		if len(p) > room {
			w.buf.Write(p[:room])
		} else {
			w.buf.Write(p)
		}
	}
	return len(p), nil
}
