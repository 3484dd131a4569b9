// Package builder turns a job into a self-contained shell script the batch
// scheduler can run unattended.
package builder

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	shellquote "github.com/kballard/go-shellquote"

	"blast-job-service/internal/entity"
	"blast-job-service/internal/workspace"
)

var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Builder struct {
	table Table
}

func New(table Table) (*Builder, error) {
	for mode, exe := range table.Executables {
		if exe == "" {
			return nil, fmt.Errorf("builder: empty executable for mode %s", mode)
		}
	}
	for k := range table.Env {
		if !envName.MatchString(k) {
			return nil, fmt.Errorf("builder: invalid env name %q", k)
		}
	}
	return &Builder{table: table}, nil
}

// ValidateMode fails with ErrInvalidSearchMode for modes missing from the table.
func (b *Builder) ValidateMode(mode entity.SearchMode) error {
	if _, ok := b.table.Executables[mode]; !ok {
		return fmt.Errorf("%w: %q", entity.ErrInvalidSearchMode, mode)
	}
	return nil
}

// Modes lists the configured search modes, sorted.
func (b *Builder) Modes() []entity.SearchMode {
	modes := make([]entity.SearchMode, 0, len(b.table.Executables))
	for m := range b.table.Executables {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	return modes
}

// Command returns the search engine argv. Output goes to the partial path so
// the final output file only ever appears complete.
func (b *Builder) Command(job entity.Job, paths workspace.Paths, ds entity.Dataset) ([]string, error) {
	exe, ok := b.table.Executables[job.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrInvalidSearchMode, job.Mode)
	}
	argv := []string{
		exe,
		"-query", paths.Input,
		"-db", ds.StagedPath,
		"-out", paths.Partial,
		"-outfmt", job.Format.String(),
	}
	if job.Mode == entity.ModeMegablast {
		argv = append(argv, "-task", "megablast")
	}
	return argv, nil
}

// Build renders the job script. On engine failure the script moves stderr to
// the error file and exits non-zero; on success it makes the output readable
// and renames it into place.
func (b *Builder) Build(job entity.Job, paths workspace.Paths, ds entity.Dataset) ([]byte, error) {
	argv, err := b.Command(job, paths, ds)
	if err != nil {
		return nil, err
	}
	q := func(s string) string { return shellquote.Join(s) }

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#!/bin/sh\n")
	fmt.Fprintf(&buf, "#$ -S /bin/sh\n")
	fmt.Fprintf(&buf, "# job %s: %s against %s\n", job.ID, job.Mode, ds.Name)
	fmt.Fprintf(&buf, "umask 022\n")
	fmt.Fprintf(&buf, "export BLASTDB=%s\n", q(filepath.Dir(ds.StagedPath)))

	keys := make([]string, 0, len(b.table.Env))
	for k := range b.table.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "export %s=%s\n", k, q(b.table.Env[k]))
	}

	fmt.Fprintf(&buf, "rm -f %s %s\n", q(paths.Partial), q(paths.Log))
	fmt.Fprintf(&buf, "%s 2>%s\n", shellquote.Join(argv...), q(paths.Log))
	fmt.Fprintf(&buf, "status=$?\n")
	fmt.Fprintf(&buf, "if [ \"$status\" -ne 0 ]; then\n")
	fmt.Fprintf(&buf, "\trm -f %s\n", q(paths.Partial))
	fmt.Fprintf(&buf, "\techo \"search engine exited with status $status\" >>%s\n", q(paths.Log))
	fmt.Fprintf(&buf, "\tmv -f %s %s\n", q(paths.Log), q(paths.Error))
	fmt.Fprintf(&buf, "\texit \"$status\"\n")
	fmt.Fprintf(&buf, "fi\n")
	fmt.Fprintf(&buf, "if [ ! -f %s ]; then\n", q(paths.Partial))
	fmt.Fprintf(&buf, "\techo \"search engine produced no output\" >>%s\n", q(paths.Log))
	fmt.Fprintf(&buf, "\tmv -f %s %s\n", q(paths.Log), q(paths.Error))
	fmt.Fprintf(&buf, "\texit 1\n")
	fmt.Fprintf(&buf, "fi\n")
	fmt.Fprintf(&buf, "rm -f %s\n", q(paths.Log))
	fmt.Fprintf(&buf, "chmod 0644 %s\n", q(paths.Partial))
	fmt.Fprintf(&buf, "mv -f %s %s\n", q(paths.Partial), q(paths.Output))
	return buf.Bytes(), nil
}
