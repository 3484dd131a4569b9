// cmd/worker/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"blast-job-service/internal/app"
	"blast-job-service/internal/config"
	"blast-job-service/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	if cfg.Scheduler != config.SchedulerRedis {
		logger.Fatal().Str("scheduler", cfg.Scheduler).Msg("worker needs SCHEDULER=redis")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init")
	}
	defer a.Close()

	logger.Info().
		Int("workers", cfg.Workers).
		Str("redis_addr", cfg.RedisAddr).
		Str("queue_key", cfg.RedisQueueKey).
		Str("processing_key", cfg.RedisProcessingKey).
		Str("work_dir", cfg.WorkDir).
		Dur("job_timeout", cfg.JobTimeout).
		Str("postgres_dsn", config.RedactDSN(cfg.PostgresDSN)).
		Msg("worker started")

	// Jobs still in processing were claimed by a worker that died; they are
	// requeued before the pool starts claiming.
	a.RunWorkers(ctx)

	logger.Info().Msg("worker stopped")
}
