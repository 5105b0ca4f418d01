package engine

import (
	"context"
	"testing"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow"
	"github.com/stretchr/testify/require"
)

func recordingPlugin(calls *[]plugin.Call) plugin.Plugin {
	return funcPlugin{
		meta: plugin.PluginMetadata{Name: "record", Version: "1.0.0"},
		fn: func(call plugin.Call) (plugin.Result, error) {
			*calls = append(*calls, call)
			return plugin.Result{Output: plugin.Output{"seen": true}}, nil
		},
	}
}

func failingPlugin(failOn int) plugin.Plugin {
	attempt := 0
	return funcPlugin{
		meta: plugin.PluginMetadata{Name: "flaky", Version: "1.0.0"},
		fn: func(call plugin.Call) (plugin.Result, error) {
			attempt++
			if attempt == failOn {
				return plugin.Result{}, plugin.NewPluginError(call.StepName, "flaky", "boom", nil)
			}
			return plugin.Result{Output: plugin.Output{"attempt": attempt}}, nil
		},
	}
}

func testScheduler(t *testing.T, p plugin.Plugin) *Scheduler {
	t.Helper()
	catalog := plugin.NewCatalog(nil, nil)
	require.NoError(t, catalog.Register(p))
	return NewScheduler(catalog, 4, nil)
}

func loopStep(name, pluginName string, cfg workflow.LoopConfig) workflow.StepConfig {
	return workflow.StepConfig{
		Name:        name,
		Plugin:      pluginName,
		FailOnError: true,
		LoopConfig:  &cfg,
	}
}

func TestLoopStrategyDrivesOverCollection(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	runCtx := New("task-1", "", nil)
	runCtx.Set("items", []interface{}{"a", "b", "c"})

	step := loopStep("each", "record", workflow.LoopConfig{Collection: "items"})
	loopCtx := runCtx.SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 3)
}

func TestLoopStrategyDrivesOverCount(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	count := 4
	step := loopStep("each", "record", workflow.LoopConfig{Count: &count})
	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 4)
}

func TestLoopStrategyDrivesOverCondition(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	loopCtx.Set("keep_going", true)

	step := loopStep("each", "record", workflow.LoopConfig{Condition: "keep_going", MaxIterations: 2})
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 2)
}

func TestLoopStrategyPrecedenceFavorsCollectionOverCount(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	count := 10
	runCtx := New("task-1", "", nil)
	runCtx.Set("items", []interface{}{"x"})
	loopCtx := runCtx.SpawnChild(nil)

	step := loopStep("each", "record", workflow.LoopConfig{Collection: "items", Count: &count})
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
}

func TestLoopStrategyBindsItemAndIndexNames(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	runCtx := New("task-1", "", nil)
	runCtx.Set("items", []interface{}{"first", "second"})
	loopCtx := runCtx.SpawnChild(nil)

	step := loopStep("each", "record", workflow.LoopConfig{
		Collection: "items",
		ItemName:   "thing",
		IndexName:  "pos",
	})
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	v, ok := calls[0].Context.Get("thing")
	require.True(t, ok)
	require.Equal(t, "first", v)
	v, ok = calls[0].Context.Get("pos")
	require.True(t, ok)
	require.Equal(t, 0, v)
}

func TestLoopStrategySynthesizesSingleStepBodyFromParentStep(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	count := 1
	step := workflow.StepConfig{
		Name:        "each",
		Plugin:      "record",
		FailOnError: true,
		Config:      map[string]interface{}{"k": "v"},
		LoopConfig:  &workflow.LoopConfig{Count: &count},
	}
	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	require.Equal(t, "each_iteration", calls[0].StepName)
}

func TestLoopStrategyRunsExplicitMultiStepBody(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	catalog := plugin.NewCatalog(nil, nil)
	require.NoError(t, catalog.Register(recordingPlugin(&calls)))
	sched := NewScheduler(catalog, 4, nil)
	ls := &LoopStrategy{Scheduler: sched}

	count := 1
	step := workflow.StepConfig{
		Name:   "each",
		Plugin: "record",
		LoopConfig: &workflow.LoopConfig{
			Count: &count,
			Body: []workflow.StepConfig{
				{Name: "first", Plugin: "record", FailOnError: true},
				{Name: "second", Plugin: "record", FailOnError: true, DependsOn: []workflow.Dependency{{Step: "first"}}},
			},
		},
	}
	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 2)
}

func TestLoopStrategyStopsOnFailFast(t *testing.T) {
	t.Parallel()

	sched := testScheduler(t, failingPlugin(2))
	ls := &LoopStrategy{Scheduler: sched}

	count := 5
	step := loopStep("each", "flaky", workflow.LoopConfig{Count: &count, FailFast: true})
	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.Error(t, err)
}

func TestLoopStrategyContinuesPastFailureWithoutFailFast(t *testing.T) {
	t.Parallel()

	sched := testScheduler(t, failingPlugin(2))
	ls := &LoopStrategy{Scheduler: sched}

	count := 3
	step := loopStep("each", "flaky", workflow.LoopConfig{Count: &count, FailFast: false})
	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.Error(t, err)
}

func TestLoopStrategySkipsAlreadyProcessedIterationsOnResume(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	runCtx := New("task-1", "", nil)
	runCtx.Set("items", []interface{}{"a", "b", "c"})
	loopCtx := runCtx.SpawnChild(nil)
	loopCtx.Set("item_0_processed", true)
	loopCtx.Set("item_1_processed", true)

	step := loopStep("each", "record", workflow.LoopConfig{Collection: "items"})
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)
	require.Len(t, calls, 1)

	v, ok := calls[0].Context.Get("index")
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestLoopStrategyAccumulatesResultsUnderResultName(t *testing.T) {
	t.Parallel()

	var calls []plugin.Call
	sched := testScheduler(t, recordingPlugin(&calls))
	ls := &LoopStrategy{Scheduler: sched}

	count := 2
	step := loopStep("each", "record", workflow.LoopConfig{Count: &count, ResultName: "results"})
	loopCtx := New("task-1", "", nil).SpawnChild(nil)
	_, err := ls.Run(context.Background(), step, loopCtx)
	require.NoError(t, err)

	v, ok := loopCtx.Get("results")
	require.True(t, ok)
	snap, ok := v.(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, snap, "each_iteration")
}
