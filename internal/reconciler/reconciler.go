// Package reconciler maps a job token onto its completion state by looking
// at the job's files. Each call is a single point-in-time check.
package reconciler

import (
	"fmt"
	"io"
	"os"
	"strings"

	"blast-job-service/internal/entity"
	"blast-job-service/internal/workspace"
)

const maxDiagnostic = 64 << 10

type Reconciler struct {
	ws *workspace.Manager
}

func New(ws *workspace.Manager) *Reconciler {
	return &Reconciler{ws: ws}
}

// Poll returns the job's output when complete. It never writes; polling a
// completed job repeatedly yields the same bytes.
func (r *Reconciler) Poll(token string) (entity.PollResult, error) {
	status, paths, err := r.inspect(token)
	if err != nil {
		return entity.PollResult{}, err
	}

	switch status {
	case entity.PollComplete:
		data, err := os.ReadFile(paths.Output)
		if err != nil {
			return entity.PollResult{}, fmt.Errorf("%w: %v", entity.ErrResultRead, err)
		}
		return entity.PollResult{Status: status, Content: data}, nil
	case entity.PollFailed:
		diag, err := readHead(paths.Error, maxDiagnostic)
		if err != nil {
			return entity.PollResult{}, fmt.Errorf("%w: %v", entity.ErrResultRead, err)
		}
		return entity.PollResult{Status: status, Diagnostic: strings.TrimSpace(diag)}, nil
	default:
		return entity.PollResult{Status: status}, nil
	}
}

// Status is Poll without reading the output.
func (r *Reconciler) Status(token string) (entity.PollStatus, error) {
	status, _, err := r.inspect(token)
	return status, err
}

func (r *Reconciler) inspect(token string) (entity.PollStatus, workspace.Paths, error) {
	id, err := r.ws.ParseToken(token)
	if err != nil {
		return entity.PollNotFound, workspace.Paths{}, nil
	}
	paths := r.ws.PathsFor(id)

	checks := []struct {
		path   string
		status entity.PollStatus
	}{
		{paths.Output, entity.PollComplete},
		{paths.Error, entity.PollFailed},
		{paths.Input, entity.PollPending},
	}
	for _, c := range checks {
		ok, err := workspace.Exists(c.path)
		if err != nil {
			return "", paths, fmt.Errorf("%w: %v", entity.ErrResultRead, err)
		}
		if ok {
			return c.status, paths, nil
		}
	}
	return entity.PollNotFound, paths, nil
}

func readHead(path string, n int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
