// Package dataset resolves requested database names to staged, indexed
// datasets the search engine can read.
package dataset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"blast-job-service/internal/entity"
)

// IndexSuffixes are the index artifacts that mark a formatted database:
// nucleotide and protein volumes, plus their multi-volume aliases.
var IndexSuffixes = []string{".nin", ".pin", ".nal", ".pal"}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// NormalizeName validates a requested database name before it is used in any
// path. A trailing ".fasta" is dropped.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = strings.TrimSuffix(name, ".fasta")
	if name == "" || len(name) > 128 || !validName.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: invalid database name %q", entity.ErrDatasetNotFound, name)
	}
	return name, nil
}

// Catalog is the read-only source of datasets: one directory per database,
// holding index files named after it.
type Catalog struct {
	root string
}

func NewCatalog(root string) *Catalog {
	return &Catalog{root: filepath.Clean(root)}
}

func (c *Catalog) Root() string { return c.root }

// List returns the names of all database directories, sorted.
func (c *Catalog) List() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("catalog: list %s: %w", c.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !validName.MatchString(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// SourcePath returns the directory holding the named database.
func (c *Catalog) SourcePath(name string) (string, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(c.root, name)
	info, err := os.Lstat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", entity.ErrDatasetNotFound, name)
		}
		return "", fmt.Errorf("catalog: stat %s: %w", name, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", entity.ErrDatasetNotFound, name)
	}
	return dir, nil
}

// hasIndex reports whether any recognized index file exists for prefix.
func hasIndex(prefix string) bool {
	for _, suffix := range IndexSuffixes {
		info, err := os.Stat(prefix + suffix)
		if err == nil && info.Mode().IsRegular() {
			return true
		}
	}
	return false
}
