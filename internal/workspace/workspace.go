// Package workspace owns the shared job directory: it allocates job ids and
// derives every job-scoped path from them.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	InputSuffix   = ".fasta"
	ScriptSuffix  = ".scr"
	OutputSuffix  = ".out"
	PartialSuffix = ".out.part"
	ErrorSuffix   = ".err"
	LogSuffix     = ".err.part"

	datasetsDir = "databases"
)

var ErrInvalidToken = errors.New("workspace: invalid job token")

// Paths are the files belonging to one job. Only Input, Script and Output
// are part of the job record; the rest are written by the job script.
type Paths struct {
	Input   string
	Script  string
	Output  string
	Partial string
	Error   string
	Log     string
}

// All returns every job-scoped path.
func (p Paths) All() []string {
	return []string{p.Input, p.Script, p.Output, p.Partial, p.Error, p.Log}
}

type Manager struct {
	root string
}

// New initializes a Manager rooted at root, creating the directory if needed.
func New(root string) (*Manager, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("workspace: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: ensure root: %w", err)
	}
	return &Manager{root: abs}, nil
}

func (m *Manager) Root() string { return m.root }

// DatasetsDir is the shared area staged datasets are copied into.
func (m *Manager) DatasetsDir() string {
	return filepath.Join(m.root, datasetsDir)
}

// AllocateJobID returns a random (v4) id. Uniqueness does not depend on the
// clock, so same-second submissions never collide.
func (m *Manager) AllocateJobID() (uuid.UUID, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return uuid.Nil, fmt.Errorf("workspace: allocate job id: %w", err)
	}
	return id, nil
}

func (m *Manager) PathsFor(id uuid.UUID) Paths {
	base := filepath.Join(m.root, id.String())
	return Paths{
		Input:   base + InputSuffix,
		Script:  base + ScriptSuffix,
		Output:  base + OutputSuffix,
		Partial: base + PartialSuffix,
		Error:   base + ErrorSuffix,
		Log:     base + LogSuffix,
	}
}

// ParseToken accepts only the canonical lowercase form of a job id, so a
// token can never name anything but a file directly under the root.
func (m *Manager) ParseToken(token string) (uuid.UUID, error) {
	id, err := uuid.Parse(token)
	if err != nil || id.String() != token {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// WriteFile writes data to a temp file beside path, syncs it and renames it
// into place, so readers never observe a partial file.
func (m *Manager) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.contains(path); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("workspace: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("workspace: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("workspace: sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("workspace: close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("workspace: chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("workspace: commit %s: %w", filepath.Base(path), err)
	}
	committed = true
	return nil
}

// Remove deletes every file of the job, ignoring ones that do not exist.
func (m *Manager) Remove(id uuid.UUID) error {
	var errs []error
	for _, p := range m.PathsFor(id).All() {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unfinished lists jobs whose script was written but which have published
// neither output nor error.
func (m *Manager) Unfinished() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("workspace: list root: %w", err)
	}
	var ids []uuid.UUID
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasSuffix(name, ScriptSuffix) {
			continue
		}
		id, err := m.ParseToken(strings.TrimSuffix(name, ScriptSuffix))
		if err != nil {
			continue
		}
		p := m.PathsFor(id)
		done := false
		for _, f := range []string{p.Output, p.Error} {
			ok, err := Exists(f)
			if err != nil {
				return nil, err
			}
			done = done || ok
		}
		if !done {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Exists reports whether path is present. Errors other than "not exist" are
// returned as-is.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (m *Manager) contains(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("workspace: %s is outside %s", path, m.root)
	}
	return nil
}
