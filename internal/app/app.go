// Package app assembles the service from configuration. The api, worker and
// blastctl binaries share it so they agree on paths, queues and the journal.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"blast-job-service/internal/builder"
	"blast-job-service/internal/config"
	"blast-job-service/internal/dataset"
	"blast-job-service/internal/queue"
	"blast-job-service/internal/repository/postgresql"
	"blast-job-service/internal/scheduler"
	"blast-job-service/internal/service"
	"blast-job-service/internal/worker"
	"blast-job-service/internal/workspace"
)

const requeueBatch = 100

type App struct {
	Config    config.Config
	Workspace *workspace.Manager
	Service   *service.BlastService

	queue queue.Queue
	pool  *worker.Pool
	pg    *pgxpool.Pool
	rdb   *redis.Client
	log   zerolog.Logger
}

// New builds every component named by cfg. Postgres and Redis are connected
// only when configured. Call Close when done.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	ws, err := workspace.New(cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	a.Workspace = ws

	table := builder.DefaultTable()
	if cfg.BinConfigPath != "" {
		table, err = builder.LoadTable(cfg.BinConfigPath)
		if err != nil {
			return nil, err
		}
	}
	b, err := builder.New(table)
	if err != nil {
		return nil, err
	}

	resolver := dataset.NewResolver(
		dataset.NewCatalog(cfg.DBFolder),
		ws.DatasetsDir(),
		dataset.WithRetry(uint64(cfg.StageRetries), 500*time.Millisecond),
		dataset.WithTimeout(cfg.StageTimeout),
		dataset.WithLogger(log),
	)

	var submitter service.Submitter
	switch cfg.Scheduler {
	case config.SchedulerQsub:
		submitter = scheduler.NewQsub(cfg.QsubBin, ws.Root(), cfg.SubmitTimeout, log)
	case config.SchedulerRedis:
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.queue = queue.NewRedisQueue(a.rdb, cfg.RedisQueueKey, cfg.RedisProcessingKey)
		submitter = scheduler.NewQueued(config.SchedulerRedis, a.queue, cfg.SubmitTimeout, log)
	case config.SchedulerLocal:
		a.queue = queue.NewMemoryQueue()
		submitter = scheduler.NewQueued(config.SchedulerLocal, a.queue, cfg.SubmitTimeout, log)
	}
	if a.queue != nil {
		exec := worker.NewExecutor(ws, cfg.JobTimeout, log)
		a.pool = worker.NewPool(a.queue, exec, cfg.Workers, log)
	}

	var journal service.Journal
	if cfg.PostgresDSN != "" {
		a.pg, err = postgresql.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("pg: %w", err)
		}
		repo := postgresql.NewJobRepository(a.pg)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		journal = repo
	}

	a.Service = service.NewBlastService(ws, resolver, b, submitter, journal, log)
	ok = true
	return a, nil
}

// HasWorkers reports whether jobs submitted through this App are executed by
// an executor pool rather than an external scheduler.
func (a *App) HasWorkers() bool { return a.pool != nil }

// RunWorkers requeues jobs a previous process left unfinished, then runs the
// executor pool until ctx is done. It returns at once when the scheduler is
// external.
func (a *App) RunWorkers(ctx context.Context) {
	if a.pool == nil {
		return
	}
	n, err := a.queue.RequeueStale(ctx, requeueBatch)
	if err != nil {
		a.log.Error().Err(err).Msg("requeue stale jobs")
	} else if n > 0 {
		a.log.Info().Int64("count", n).Msg("requeued jobs from processing")
	}
	if a.Config.Scheduler == config.SchedulerLocal {
		a.recoverLocal(ctx)
	}
	a.pool.Run(ctx)
}

// recoverLocal re-enqueues jobs accepted by an earlier process whose
// in-memory queue died with it. The executor's script lock keeps a job that
// is also still queued here from running twice.
func (a *App) recoverLocal(ctx context.Context) {
	ids, err := a.Workspace.Unfinished()
	if err != nil {
		a.log.Error().Err(err).Msg("scan unfinished jobs")
		return
	}
	for _, id := range ids {
		if err := a.queue.Enqueue(ctx, id.String()); err != nil {
			a.log.Error().Err(err).Str("job_id", id.String()).Msg("re-enqueue job")
			return
		}
	}
	if len(ids) > 0 {
		a.log.Info().Int("count", len(ids)).Msg("re-enqueued unfinished jobs")
	}
}

func (a *App) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
}
