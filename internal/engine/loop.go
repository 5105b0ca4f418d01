package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/flowforge/flowforge/internal/workflow"
	"github.com/flowforge/flowforge/internal/workflow/state"
	"github.com/flowforge/flowforge/pkg/werrors"
)

const defaultMaxIterations = 1000

// LoopStrategy expands a loop step into iteration-scoped child executions,
// never invoking a plugin directly itself. Each iteration runs through a
// fresh Scheduler sharing the parent's catalog, registry, and concurrency
// budget, so nested fan-out still respects the global worker limit.
type LoopStrategy struct {
	Scheduler *Scheduler
}

// Run expands step (which must be IsLoop()) against loopCtx, which is
// already the step's own scoped frame (a child of the run context). It
// returns every artifact produced across iterations.
func (ls *LoopStrategy) Run(ctx context.Context, step workflow.StepConfig, loopCtx *Context) ([]state.ArtifactRef, error) {
	body := step.LoopConfig.Body
	if len(body) == 0 {
		body = []workflow.StepConfig{syntheticBody(step)}
	}

	items, count, useCondition := ls.plan(step, loopCtx)

	itemName := step.LoopConfig.ItemName
	if itemName == "" {
		itemName = "item"
	}
	indexName := step.LoopConfig.IndexName
	if indexName == "" {
		indexName = "index"
	}

	start := resumeStartIndex(loopCtx)

	var artifacts []state.ArtifactRef
	var failed bool

	runIteration := func(index int, item interface{}, hasItem bool) error {
		iterCtx := loopCtx.SpawnChild(nil)
		iterCtx.SetLoopScope(step.Name, index, item, hasItem)
		overrides := map[string]interface{}{indexName: index}
		if hasItem {
			overrides[itemName] = item
		}
		for k, v := range overrides {
			iterCtx.Set(k, v)
		}

		child := &Scheduler{
			Catalog:    ls.Scheduler.Catalog,
			Pipelines:  ls.Scheduler.Pipelines,
			Sem:        ls.Scheduler.Sem,
			Resolver:   Resolver{},
			Invoker:    ls.Scheduler.Invoker,
			Output:     ls.Scheduler.Output,
			Progress:   ls.Scheduler.Progress,
			Summary:    func(PipelineSummary) {},
			Checkpoint: ls.Scheduler.Checkpoint,
		}

		bodyPipeline := workflow.PipelineDefinition{
			Name:  fmt.Sprintf("%s_iteration_%d", step.Name, index),
			Steps: body,
		}
		deps, err := NewValidator(child.Catalog).Validate(bodyPipeline)
		if err != nil {
			return err
		}
		dagState := state.New(stepNames(bodyPipeline))
		runErr := child.Run(ctx, bodyPipeline, deps, dagState, iterCtx)

		for _, name := range stepNames(bodyPipeline) {
			artifacts = append(artifacts, dagState.Get(name).SavedArtifacts...)
		}
		loopCtx.Update(iterCtx.Snapshot())
		loopCtx.Set(fmt.Sprintf("item_%d_processed", index), true)

		if step.LoopConfig.ResultName != "" {
			loopCtx.Set(step.LoopConfig.ResultName, iterCtx.Snapshot())
		}
		return runErr
	}

	switch {
	case useCondition:
		maxIter := step.LoopConfig.MaxIterations
		if maxIter <= 0 {
			maxIter = defaultMaxIterations
		}
		index := start
		for index < maxIter {
			v, _ := loopCtx.Get(step.LoopConfig.Condition)
			if !truthy(v) {
				break
			}
			if err := runIteration(index, index, false); err != nil {
				failed = true
				if step.LoopConfig.FailFast {
					return artifacts, err
				}
			}
			index++
			if err := sleepBetween(ctx, step, index, maxIter); err != nil {
				return artifacts, err
			}
		}
	case count >= 0:
		for index := start; index < count; index++ {
			if err := runIteration(index, index, false); err != nil {
				failed = true
				if step.LoopConfig.FailFast {
					return artifacts, err
				}
			}
			if err := sleepBetween(ctx, step, index+1, count); err != nil {
				return artifacts, err
			}
		}
	default:
		for index := start; index < len(items); index++ {
			if err := runIteration(index, items[index], true); err != nil {
				failed = true
				if step.LoopConfig.FailFast {
					return artifacts, err
				}
			}
			if err := sleepBetween(ctx, step, index+1, len(items)); err != nil {
				return artifacts, err
			}
		}
	}

	if failed {
		return artifacts, werrors.NewDAGExecutionError(step.Name, fmt.Errorf("one or more loop iterations failed"))
	}
	return artifacts, nil
}

// plan resolves which driver this loop uses and its bounds, in the
// collection > count > condition precedence order.
func (ls *LoopStrategy) plan(step workflow.StepConfig, loopCtx *Context) (items []interface{}, count int, useCondition bool) {
	cfg := step.LoopConfig
	switch cfg.Driver() {
	case workflow.DriverCollection:
		v, _ := loopCtx.Get(cfg.Collection)
		return toSlice(v), -1, false
	case workflow.DriverCount:
		return nil, *cfg.Count, false
	default:
		return nil, -1, true
	}
}

func toSlice(v interface{}) []interface{} {
	vv, _ := v.([]interface{})
	return vv
}

func truthy(v interface{}) bool {
	switch vv := v.(type) {
	case nil:
		return false
	case bool:
		return vv
	case string:
		return vv != ""
	case int:
		return vv != 0
	default:
		return true
	}
}

// syntheticBody builds the single-step body for a loop that declared no
// explicit body: one step named "<loop_name>_iteration" reusing the
// parent's own plugin and config.
func syntheticBody(step workflow.StepConfig) workflow.StepConfig {
	return workflow.StepConfig{
		Name:        step.Name + "_iteration",
		Plugin:      step.Plugin,
		Config:      step.Config,
		Connections: step.Connections,
		FailOnError: step.FailOnError,
	}
}

// resumeStartIndex implements the resume protocol: iterations already marked
// "item_<index>_processed" in the loop context are skipped by scanning
// forward from zero until the first unprocessed index.
func resumeStartIndex(loopCtx *Context) int {
	index := 0
	for {
		if _, ok := loopCtx.Get(fmt.Sprintf("item_%d_processed", index)); !ok {
			break
		}
		index++
	}
	return index
}

func sleepBetween(ctx context.Context, step workflow.StepConfig, completed, total int) error {
	if step.LoopConfig.DelayMS <= 0 || completed >= total {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(step.LoopConfig.DelayMS) * time.Millisecond):
		return nil
	}
}
