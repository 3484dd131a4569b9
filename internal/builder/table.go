package builder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"blast-job-service/internal/entity"
)

// Table maps each search mode to the executable that runs it, plus extra
// environment exported by every job script.
type Table struct {
	Executables map[entity.SearchMode]string `yaml:"executables"`
	Env         map[string]string            `yaml:"env"`
}

func DefaultTable() Table {
	return Table{
		Executables: map[entity.SearchMode]string{
			entity.ModeBlastn:    "/usr/bin/blastn",
			entity.ModeBlastp:    "/usr/bin/blastp",
			entity.ModeBlastx:    "/usr/bin/blastx",
			entity.ModeTblastn:   "/usr/bin/tblastn",
			entity.ModeMegablast: "/usr/bin/blastn",
		},
		Env: map[string]string{},
	}
}

// LoadTable reads a YAML table from path. Entries override the defaults.
//
//	executables:
//	  blastn: /opt/ncbi/bin/blastn
//	env:
//	  BLASTDB_LMDB_MAP_SIZE: "1000000"
func LoadTable(path string) (Table, error) {
	t := DefaultTable()
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("builder: read table: %w", err)
	}
	var file Table
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Table{}, fmt.Errorf("builder: parse table %s: %w", path, err)
	}
	for mode, exe := range file.Executables {
		t.Executables[mode] = exe
	}
	for k, v := range file.Env {
		t.Env[k] = v
	}
	return t, nil
}
