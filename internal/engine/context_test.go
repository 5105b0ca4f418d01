package engine

import (
	"testing"

	"github.com/flowforge/flowforge/internal/workflow/state"
	"github.com/stretchr/testify/require"
)

func TestContextGetFallsThroughToParent(t *testing.T) {
	t.Parallel()

	root := New("task-1", "deploy", nil)
	root.Set("items", []int{1, 2, 3})

	child := root.SpawnChild(map[string]interface{}{"index": 0})
	v, ok := child.Get("items")
	require.True(t, ok)
	require.Equal(t, []int{1, 2, 3}, v)

	idx, ok := child.Get("index")
	require.True(t, ok)
	require.Equal(t, 0, idx)
}

func TestContextSetDoesNotMutateParent(t *testing.T) {
	t.Parallel()

	root := New("task-1", "", nil)
	child := root.SpawnChild(nil)
	child.Set("scratch", "value")

	_, ok := root.Get("scratch")
	require.False(t, ok)
}

func TestContextUpdateMergesIntoFrame(t *testing.T) {
	t.Parallel()

	root := New("task-1", "", nil)
	child := root.SpawnChild(nil)
	child.Set("a", 1)

	root.Update(child.Snapshot())
	v, ok := root.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestContextResumeDataFor(t *testing.T) {
	t.Parallel()

	root := New("task-1", "", map[string]interface{}{
		"ask_user": map[string]interface{}{"complete": true, "collected_data": map[string]interface{}{"name": "Ada"}},
	})

	data, ok := root.ResumeDataFor("ask_user")
	require.True(t, ok)
	require.Equal(t, true, data["complete"])
}

func TestContextLoopScopeInheritsThroughNestedFrames(t *testing.T) {
	t.Parallel()

	root := New("task-1", "", nil)
	loopFrame := root.SpawnChild(nil)
	loopFrame.SetLoopScope("double_items", 2, 7, true)

	nested := loopFrame.SpawnChild(nil)
	scope, ok := nested.GetLoopScope()
	require.True(t, ok)
	require.Equal(t, "double_items", scope.StepName)
	require.Equal(t, 2, scope.Index)
	require.Equal(t, 7, scope.Item)
}

func TestContextAppendArtifactIsFrameLocal(t *testing.T) {
	t.Parallel()

	root := New("task-1", "", nil)
	child := root.SpawnChild(nil)
	child.AppendArtifact(state.ArtifactRef{ID: "1", Filename: "out.txt"})

	require.Len(t, child.Artifacts(), 1)
	require.Empty(t, root.Artifacts())
}

func TestContextFlattenedSnapshotPrefersChildValues(t *testing.T) {
	t.Parallel()

	root := New("task-1", "", nil)
	root.Set("env", "prod")
	child := root.SpawnChild(map[string]interface{}{"env": "staging"})

	flat := child.FlattenedSnapshot()
	require.Equal(t, "staging", flat["env"])
}
