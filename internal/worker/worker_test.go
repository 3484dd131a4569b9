package worker_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blast-job-service/internal/queue"
	"blast-job-service/internal/worker"
	"blast-job-service/internal/workspace"
)

func setup(t *testing.T, script string) (*workspace.Manager, uuid.UUID, workspace.Paths) {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	id := uuid.New()
	p := ws.PathsFor(id)
	require.NoError(t, os.WriteFile(p.Script, []byte(script), 0o755))
	return ws, id, p
}

func TestExecutorRunsScript(t *testing.T) {
	ws, id, p := setup(t, "#!/bin/sh\necho done > \"$(basename \"$0\" .scr).out\"\n")

	e := worker.NewExecutor(ws, 5*time.Second, zerolog.Nop())
	require.NoError(t, e.Process(context.Background(), id.String()))

	data, err := os.ReadFile(p.Output)
	require.NoError(t, err)
	assert.Equal(t, "done\n", string(data))
}

func TestExecutorWritesErrorFileWhenScriptCannot(t *testing.T) {
	ws, id, p := setup(t, "#!/bin/sh\necho boom >&2\nexit 3\n")

	e := worker.NewExecutor(ws, 5*time.Second, zerolog.Nop())
	require.Error(t, e.Process(context.Background(), id.String()))

	diag, err := os.ReadFile(p.Error)
	require.NoError(t, err)
	assert.Contains(t, string(diag), "boom")
	assert.Contains(t, string(diag), "exit status 3")
}

func TestExecutorKeepsScriptErrorFile(t *testing.T) {
	ws, id, p := setup(t, "#!/bin/sh\necho 'engine said no' > \"$(basename \"$0\" .scr).err\"\nexit 1\n")

	e := worker.NewExecutor(ws, 5*time.Second, zerolog.Nop())
	require.Error(t, e.Process(context.Background(), id.String()))

	diag, err := os.ReadFile(p.Error)
	require.NoError(t, err)
	assert.Equal(t, "engine said no\n", string(diag))
}

func TestExecutorTimeout(t *testing.T) {
	ws, id, p := setup(t, "#!/bin/sh\nexec sleep 10\n")

	e := worker.NewExecutor(ws, 100*time.Millisecond, zerolog.Nop())
	err := e.Process(context.Background(), id.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")

	ok, err := workspace.Exists(p.Error)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExecutorSkipsFinishedJob(t *testing.T) {
	ws, id, p := setup(t, "#!/bin/sh\nexit 1\n")
	require.NoError(t, os.WriteFile(p.Output, []byte("old"), 0o644))

	e := worker.NewExecutor(ws, time.Second, zerolog.Nop())
	require.NoError(t, e.Process(context.Background(), id.String()))
}

func TestExecutorRejectsBadToken(t *testing.T) {
	ws, err := workspace.New(t.TempDir())
	require.NoError(t, err)

	e := worker.NewExecutor(ws, time.Second, zerolog.Nop())
	require.ErrorIs(t, e.Process(context.Background(), "../../etc/passwd"), workspace.ErrInvalidToken)
}

func TestDuplicateClaimRunsJobOnce(t *testing.T) {
	script := `#!/bin/sh
base="$(basename "$0" .scr)"
echo run >> "$base.runs"
sleep 1
echo hit > "$base.out.part"
mv "$base.out.part" "$base.out"
`
	ws, id, p := setup(t, script)
	ctx := context.Background()

	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, id.String()))
	first, err := q.ClaimBlocking(ctx, time.Second)
	require.NoError(t, err)

	// another worker starts up and reaps the entry still in processing
	n, err := q.RequeueStale(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	second, err := q.ClaimBlocking(ctx, time.Second)
	require.NoError(t, err)
	require.Equal(t, first, second)

	e := worker.NewExecutor(ws, 10*time.Second, zerolog.Nop())
	firstDone := make(chan error, 1)
	go func() { firstDone <- e.Process(ctx, first) }()

	runs := filepath.Join(ws.Root(), id.String()+".runs")
	require.Eventually(t, func() bool {
		ok, _ := workspace.Exists(runs)
		return ok
	}, 5*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, e.Process(ctx, second), worker.ErrAlreadyRunning)
	require.NoError(t, <-firstDone)

	data, err := os.ReadFile(runs)
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(data))
	out, err := os.ReadFile(p.Output)
	require.NoError(t, err)
	assert.Equal(t, "hit\n", string(out))

	// redelivered after completion: nothing runs
	require.NoError(t, e.Process(ctx, second))
	data, err = os.ReadFile(runs)
	require.NoError(t, err)
	assert.Equal(t, "run\n", string(data))
}

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
	want int
}

func (p *recordingProcessor) Process(_ context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, jobID)
	if len(p.seen) == p.want {
		close(p.done)
	}
	return nil
}

func TestPoolProcessesQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewMemoryQueue()
	proc := &recordingProcessor{done: make(chan struct{}), want: 3}
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	pool := worker.NewPool(q, proc, 2, zerolog.Nop())
	stopped := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(stopped)
	}()

	select {
	case <-proc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("jobs were not processed")
	}
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, proc.seen)

	n, err := q.RequeueStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n, "processed jobs must be acked")
}
