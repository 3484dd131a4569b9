package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blast-job-service/internal/entity"
)

var ErrNotFound = errors.New("not found")

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// JobRepository is an audit journal of job state transitions. The job's
// files remain the source of truth; nothing reads state back from here to
// decide a poll.
type JobRepository struct {
	db DB
}

func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS blast_jobs (
    id            uuid PRIMARY KEY,
    search_mode   text        NOT NULL,
    database_name text        NOT NULL,
    output_format int         NOT NULL,
    state         text        NOT NULL,
    error         text,
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now()
);
`
	_, err := r.db.Exec(ctx, q)
	return err
}

func (r *JobRepository) Record(ctx context.Context, job entity.Job, state entity.JobState, errText string) error {
	const q = `
INSERT INTO blast_jobs (id, search_mode, database_name, output_format, state, error)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
ON CONFLICT (id) DO UPDATE
SET state = EXCLUDED.state, error = EXCLUDED.error, updated_at = now();
`
	_, err := r.db.Exec(ctx, q, job.ID, string(job.Mode), job.Database, int(job.Format), string(state), errText)
	return err
}

// GetByID returns the last journaled view of a job.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	const q = `
SELECT search_mode, database_name, output_format, state, created_at
FROM blast_jobs
WHERE id = $1;
`
	var (
		mode   string
		format int
		state  string
	)
	job := entity.Job{ID: id}
	if err := r.db.QueryRow(ctx, q, id).Scan(
		&mode,
		&job.Database,
		&format,
		&state,
		&job.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	job.Mode = entity.SearchMode(mode)
	job.Format = entity.OutputFormat(format)
	job.State = entity.JobState(state)
	return &job, nil
}
