package builder_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blast-job-service/internal/builder"
	"blast-job-service/internal/entity"
	"blast-job-service/internal/workspace"
)

const fakeEngine = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
	case "$1" in
		-out) out="$2"; shift ;;
	esac
	shift
done
if [ -n "$FAIL" ]; then
	echo "BLAST Database error: No alias or index file found" >&2
	exit 2
fi
printf 'query\tsubject\t100.00\n' > "$out"
`

func newJob(t *testing.T, ws *workspace.Manager, mode entity.SearchMode) (entity.Job, workspace.Paths) {
	t.Helper()
	id := uuid.New()
	p := ws.PathsFor(id)
	return entity.Job{
		ID:         id,
		Mode:       mode,
		Database:   "testdb",
		Format:     entity.DefaultOutputFormat,
		InputPath:  p.Input,
		ScriptPath: p.Script,
		OutputPath: p.Output,
	}, p
}

func testDataset(root string) entity.Dataset {
	return entity.Dataset{Name: "testdb", StagedPath: filepath.Join(root, "databases", "testdb", "testdb")}
}

func TestCommandBlastn(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	b, err := builder.New(builder.DefaultTable())
	require.NoError(t, err)

	job, p := newJob(t, ws, entity.ModeBlastn)
	ds := testDataset(ws.Root())
	argv, err := b.Command(job, p, ds)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/usr/bin/blastn",
		"-query", p.Input,
		"-db", ds.StagedPath,
		"-out", p.Partial,
		"-outfmt", "6",
	}, argv)
}

func TestCommandMegablastAddsTask(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	b, err := builder.New(builder.DefaultTable())
	require.NoError(t, err)

	job, p := newJob(t, ws, entity.ModeMegablast)
	argv, err := b.Command(job, p, testDataset(ws.Root()))
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/blastn", argv[0])
	assert.Equal(t, []string{"-task", "megablast"}, argv[len(argv)-2:])
}

func TestUnknownModeFails(t *testing.T) {
	b, err := builder.New(builder.DefaultTable())
	require.NoError(t, err)

	require.ErrorIs(t, b.ValidateMode("psiblast"), entity.ErrInvalidSearchMode)
	_, err = b.Build(entity.Job{Mode: "psiblast"}, workspace.Paths{}, entity.Dataset{})
	require.ErrorIs(t, err, entity.ErrInvalidSearchMode)
}

func TestNewRejectsBadEnvName(t *testing.T) {
	table := builder.DefaultTable()
	table.Env["BAD NAME"] = "x"
	_, err := builder.New(table)
	require.Error(t, err)
}

func TestBuildQuotesArguments(t *testing.T) {
	ws, err := workspace.New(filepath.Join(t.TempDir(), "work dir; rm -rf"))
	require.NoError(t, err)
	table := builder.DefaultTable()
	table.Env["BLASTDB_LMDB_MAP_SIZE"] = "1 000"
	b, err := builder.New(table)
	require.NoError(t, err)

	job, p := newJob(t, ws, entity.ModeBlastp)
	script, err := b.Build(job, p, testDataset(ws.Root()))
	require.NoError(t, err)

	s := string(script)
	assert.True(t, strings.HasPrefix(s, "#!/bin/sh\n"))
	assert.Contains(t, s, "export BLASTDB_LMDB_MAP_SIZE='1 000'\n")
	assert.Contains(t, s, "'"+p.Input+"'")
	assert.NotContains(t, s, " "+p.Input+" ")
}

func TestLoadTableOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
executables:
  blastn: /opt/ncbi/bin/blastn
env:
  NCBI_CONFIG_OVERRIDES: "TRUE"
`), 0o644))

	table, err := builder.LoadTable(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/ncbi/bin/blastn", table.Executables[entity.ModeBlastn])
	assert.Equal(t, "/usr/bin/blastp", table.Executables[entity.ModeBlastp])
	assert.Equal(t, "TRUE", table.Env["NCBI_CONFIG_OVERRIDES"])

	_, err = builder.LoadTable(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func writeFakeEngine(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blastn")
	require.NoError(t, os.WriteFile(path, []byte(fakeEngine), 0o755))
	return path
}

func runScript(t *testing.T, script []byte, path string, env ...string) error {
	t.Helper()
	require.NoError(t, os.WriteFile(path, script, 0o755))
	cmd := exec.Command("/bin/sh", path)
	cmd.Env = append(os.Environ(), env...)
	return cmd.Run()
}

func TestScriptPublishesOutputOnSuccess(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	table := builder.DefaultTable()
	table.Executables[entity.ModeBlastn] = writeFakeEngine(t)
	b, err := builder.New(table)
	require.NoError(t, err)

	job, p := newJob(t, ws, entity.ModeBlastn)
	script, err := b.Build(job, p, testDataset(ws.Root()))
	require.NoError(t, err)
	require.NoError(t, runScript(t, script, p.Script))

	data, err := os.ReadFile(p.Output)
	require.NoError(t, err)
	assert.Equal(t, "query\tsubject\t100.00\n", string(data))

	info, err := os.Stat(p.Output)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	for _, gone := range []string{p.Partial, p.Error, p.Log} {
		ok, err := workspace.Exists(gone)
		require.NoError(t, err)
		assert.False(t, ok, gone)
	}
}

func TestScriptWritesErrorFileOnFailure(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	table := builder.DefaultTable()
	table.Executables[entity.ModeBlastn] = writeFakeEngine(t)
	b, err := builder.New(table)
	require.NoError(t, err)

	job, p := newJob(t, ws, entity.ModeBlastn)
	script, err := b.Build(job, p, testDataset(ws.Root()))
	require.NoError(t, err)
	require.Error(t, runScript(t, script, p.Script, "FAIL=1"))

	diag, err := os.ReadFile(p.Error)
	require.NoError(t, err)
	assert.Contains(t, string(diag), "No alias or index file found")
	assert.Contains(t, string(diag), "exited with status 2")

	ok, err := workspace.Exists(p.Output)
	require.NoError(t, err)
	assert.False(t, ok)
}
