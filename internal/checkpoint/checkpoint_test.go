package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowforge/internal/workflow/state"
)

func TestSaveAndLoadRoundTrips(t *testing.T) {
	t.Parallel()
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	dag := state.New([]string{"a", "b"})
	dag.MarkRunning("a")
	dag.MarkCompleted("a", nil)
	dag.MarkRunning("b")
	dag.MarkSuspended("b", nil)

	id, err := mgr.Save("task-1", "pipe-1", dag.Export(), map[string]interface{}{"x": 1.0}, []string{"b"}, map[string]string{"b": "waiting_on_user"}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cp, err := mgr.Load(id)
	require.NoError(t, err)
	require.Equal(t, "task-1", cp.TaskID)
	require.Equal(t, []string{"b"}, cp.Suspended)
	require.Equal(t, "waiting_on_user", cp.Reasons["b"])
	require.Len(t, cp.Steps, 2)
}

func TestListFindsSavedCheckpoints(t *testing.T) {
	t.Parallel()
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	dag := state.New([]string{"a"})
	id, err := mgr.Save("task-1", "pipe-1", dag.Export(), nil, nil, nil, nil)
	require.NoError(t, err)

	ids, err := mgr.List()
	require.NoError(t, err)
	require.Contains(t, ids, id)
}

func TestRestoreReopensSuspendedStepsWithoutOverride(t *testing.T) {
	t.Parallel()

	dag := state.New([]string{"a", "b"})
	dag.MarkCompleted("a", nil)
	dag.MarkSuspended("b", nil)

	cp := Checkpoint{
		Steps:     dag.Export(),
		Context:   map[string]interface{}{"a": map[string]interface{}{"ok": true}},
		Suspended: []string{"b"},
	}

	restored, ctx := Restore(cp, nil)
	require.Equal(t, state.Completed, restored.Status("a"))
	require.Equal(t, state.Pending, restored.Status("b"))
	require.Equal(t, map[string]interface{}{"ok": true}, ctx["a"])
}

func TestRestoreCompletesSuspendedStepWithOverride(t *testing.T) {
	t.Parallel()

	dag := state.New([]string{"b"})
	dag.MarkSuspended("b", nil)

	cp := Checkpoint{
		Steps:     dag.Export(),
		Suspended: []string{"b"},
	}

	overrides := map[string]map[string]interface{}{"b": {"approved": true}}
	restored, ctx := Restore(cp, overrides)
	require.Equal(t, state.Completed, restored.Status("b"))
	require.Equal(t, map[string]interface{}{"approved": true}, ctx["b"])
}

func TestAcquireResumeLockRejectsConcurrentResume(t *testing.T) {
	t.Parallel()
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	release, err := mgr.AcquireResumeLock("cp-1")
	require.NoError(t, err)
	defer release()

	_, err = mgr.AcquireResumeLock("cp-1")
	require.Error(t, err)
}

func TestAcquireResumeLockReclaimsStaleLock(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	mgr, err := NewManager(dir)
	require.NoError(t, err)

	lockPath := filepath.Join(dir, "cp-1.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("12345\n"), 0o644))
	old := time.Now().Add(-2 * staleLockAge)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	release, err := mgr.AcquireResumeLock("cp-1")
	require.NoError(t, err)
	release()
}
