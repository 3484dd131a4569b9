package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	cp "github.com/otiai10/copy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"blast-job-service/internal/entity"
)

// CopyFunc copies the directory tree src to dst. dst does not exist yet.
type CopyFunc func(ctx context.Context, src, dst string) error

// Resolver locates a dataset's staged index, staging it from the catalog on
// first use. Staging is safe under concurrent duplicate execution: each
// attempt copies into a private temp dir which is renamed into place, and
// callers in this process share one attempt per dataset.
type Resolver struct {
	catalog   *Catalog
	stageRoot string

	retries       uint64
	retryInterval time.Duration
	timeout       time.Duration
	copy          CopyFunc
	log           zerolog.Logger

	group singleflight.Group
}

type Option func(*Resolver)

// WithRetry bounds how many times a failed staging copy is retried.
func WithRetry(retries uint64, interval time.Duration) Option {
	return func(r *Resolver) {
		r.retries = retries
		r.retryInterval = interval
	}
}

// WithTimeout bounds a whole staging operation, retries included.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func WithCopyFunc(fn CopyFunc) Option {
	return func(r *Resolver) { r.copy = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

func NewResolver(catalog *Catalog, stageRoot string, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:       catalog,
		stageRoot:     filepath.Clean(stageRoot),
		retries:       3,
		retryInterval: 500 * time.Millisecond,
		timeout:       10 * time.Minute,
		copy:          CopyTree,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "dataset").Logger()
	return r
}

// List returns the databases available in the catalog.
func (r *Resolver) List() ([]string, error) {
	return r.catalog.List()
}

// Resolve returns the staged dataset for name. Unknown or malformed names fail
// with ErrDatasetNotFound without touching the filesystem; copy failures fail
// with ErrDatasetStagingFailed.
func (r *Resolver) Resolve(ctx context.Context, name string) (entity.Dataset, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return entity.Dataset{}, err
	}

	ds := entity.Dataset{
		Name:       name,
		SourcePath: filepath.Join(r.catalog.Root(), name, name),
		StagedPath: filepath.Join(r.stageRoot, name, name),
	}
	if hasIndex(ds.StagedPath) {
		return ds, nil
	}

	ch := r.group.DoChan(name, func() (any, error) {
		// A caller sharing this flight must not cancel it for the others.
		return nil, r.stage(context.WithoutCancel(ctx), ds)
	})
	select {
	case <-ctx.Done():
		return entity.Dataset{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return entity.Dataset{}, res.Err
		}
	}
	return ds, nil
}

func (r *Resolver) stage(ctx context.Context, ds entity.Dataset) error {
	if hasIndex(ds.StagedPath) {
		return nil
	}

	srcDir, err := r.catalog.SourcePath(ds.Name)
	if err != nil {
		return err
	}
	if !hasIndex(ds.SourcePath) {
		return fmt.Errorf("%w: %s has no index files", entity.ErrDatasetNotFound, ds.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	dstDir := filepath.Dir(ds.StagedPath)
	attempt := 0
	op := func() error {
		attempt++
		err := r.stageOnce(ctx, srcDir, dstDir)
		if err == nil {
			return nil
		}
		r.log.Warn().Err(err).Str("database", ds.Name).Int("attempt", attempt).Msg("staging attempt failed")
		if errors.Is(err, fs.ErrNotExist) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryInterval
	b.MaxElapsedTime = 0
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx)); err != nil {
		return fmt.Errorf("%w: %s: %v", entity.ErrDatasetStagingFailed, ds.Name, err)
	}

	if !hasIndex(ds.StagedPath) {
		return fmt.Errorf("%w: %s has no index files after staging", entity.ErrDatasetNotFound, ds.Name)
	}
	r.log.Info().Str("database", ds.Name).Int("attempts", attempt).
		Int64("duration_ms", time.Since(start).Milliseconds()).Msg("dataset staged")
	return nil
}

// stageOnce copies srcDir into a private temp dir and renames it to dstDir.
// Losing the rename to a concurrent stager counts as success.
func (r *Resolver) stageOnce(ctx context.Context, srcDir, dstDir string) error {
	if hasIndex(filepath.Join(dstDir, filepath.Base(dstDir))) {
		return nil
	}
	if err := os.MkdirAll(r.stageRoot, 0o755); err != nil {
		return fmt.Errorf("ensure stage root: %w", err)
	}
	tmp, err := os.MkdirTemp(r.stageRoot, ".stage-"+filepath.Base(dstDir)+"-")
	if err != nil {
		return fmt.Errorf("create stage dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	// MkdirTemp created tmp; the copier expects to create its destination.
	if err := os.Remove(tmp); err != nil {
		return fmt.Errorf("prepare stage dir: %w", err)
	}
	if err := r.copy(ctx, srcDir, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, dstDir); err != nil {
		if hasIndex(filepath.Join(dstDir, filepath.Base(dstDir))) {
			return nil
		}
		return fmt.Errorf("commit stage dir: %w", err)
	}
	return nil
}

// CopyTree recursively copies src to dst, following symlinks and skipping
// sockets, pipes and devices. ctx is checked before each entry.
func CopyTree(ctx context.Context, src, dst string) error {
	return cp.Copy(src, dst, cp.Options{
		OnSymlink: func(string) cp.SymlinkAction { return cp.Deep },
		Skip: func(info os.FileInfo, _, _ string) (bool, error) {
			if err := ctx.Err(); err != nil {
				return false, err
			}
			return info.Mode()&(os.ModeSocket|os.ModeNamedPipe|os.ModeDevice) != 0, nil
		},
		Sync: true,
	})
}
