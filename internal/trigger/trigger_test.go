package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/executor"
)

type fakeExecutor struct {
	mu    sync.Mutex
	calls []executor.ExecuteOptions
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, spec *domain.WorkflowSpec, opts executor.ExecuteOptions) (*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	exec := domain.NewExecution(spec, opts.StartNodeID, opts.Inputs)
	exec.MarkCompleted(nil)
	return exec, nil
}

func (f *fakeExecutor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func workflow() *domain.WorkflowSpec {
	return &domain.WorkflowSpec{
		Name:  "tick",
		Nodes: []domain.NodeSpec{{ID: "a", Type: "timestamp"}},
	}
}

func TestParseExpr(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 3 * * 1-5", "@hourly", "@every 30s"} {
		assert.NoError(t, ValidateExpr(expr), expr)
	}

	assert.ErrorIs(t, ValidateExpr("  "), ErrEmptyExpr)
	assert.Error(t, ValidateExpr("* * *"))
	assert.Error(t, ValidateExpr("@sometimes"))
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 7, 0, 0, time.UTC)

	next, err := NextRun("*/15 * * * *", "", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC), next)

	next, err = NextRun("@every 90s", "", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(90*time.Second), next)

	// 03:00 в Москве (UTC+3) — 00:00 UTC.
	next, err = NextRun("0 3 * * *", "Europe/Moscow", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), next)

	// Неизвестная зона — UTC.
	next, err = NextRun("0 3 * * *", "Mars/Olympus", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestAdd_Validation(t *testing.T) {
	tr := New(Config{Executor: &fakeExecutor{}})

	_, err := tr.Add(Schedule{Name: "x", Expr: "@hourly"})
	assert.Error(t, err)

	_, err = tr.Add(Schedule{Name: "x", Expr: "nope", Workflow: workflow()})
	assert.Error(t, err)

	bad := &domain.WorkflowSpec{Nodes: []domain.NodeSpec{{ID: "a"}}}
	_, err = tr.Add(Schedule{Name: "x", Expr: "@hourly", Workflow: bad})
	assert.ErrorIs(t, err, engine.ErrEmptyNodeType)

	assert.Empty(t, tr.Entries())
}

func TestAddRemoveEntries(t *testing.T) {
	tr := New(Config{Executor: &fakeExecutor{}})

	id1, err := tr.Add(Schedule{Expr: "@hourly", Workflow: workflow()})
	require.NoError(t, err)
	id2, err := tr.Add(Schedule{Name: "second", Expr: "*/5 * * * *", Workflow: workflow()})
	require.NoError(t, err)

	entries := tr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, id1, entries[0].ID)
	assert.Equal(t, "tick", entries[0].Name, "name defaults to workflow name")
	assert.Equal(t, "second", entries[1].Name)

	tr.Remove(id2)
	entries = tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, id1, entries[0].ID)
}

func TestFire_CountsRunsAndSkips(t *testing.T) {
	exec := &fakeExecutor{}

	var mu sync.Mutex
	var seen []error
	tr := New(Config{
		Executor: exec,
		OnRun: func(name string, _ *domain.Execution, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, err)
		},
	})

	_, err := tr.Add(Schedule{Name: "s", Expr: "@hourly", Workflow: workflow(), Inputs: map[string]any{"x": 1}})
	require.NoError(t, err)

	state := tr.schedules[tr.Entries()[0].ID]
	tr.fire(state)

	exec.err = engine.ErrAlreadyRunning
	tr.fire(state)

	entry := tr.Entries()[0]
	assert.Equal(t, 1, entry.Runs)
	assert.Equal(t, 1, entry.Skipped)

	require.Len(t, seen, 2)
	assert.NoError(t, seen[0])
	assert.ErrorIs(t, seen[1], engine.ErrAlreadyRunning)
	assert.Equal(t, map[string]any{"x": 1}, exec.calls[0].Inputs)
}

func TestStartStop_Fires(t *testing.T) {
	exec := &fakeExecutor{}
	tr := New(Config{Executor: exec})

	_, err := tr.Add(Schedule{Name: "fast", Expr: "@every 1s", Workflow: workflow()})
	require.NoError(t, err)

	tr.Start()
	require.Eventually(t, func() bool { return exec.count() >= 1 }, 3*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Stop(ctx))

	n := exec.count()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, n, exec.count(), "no runs after Stop")
}
