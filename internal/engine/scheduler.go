package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow"
	"github.com/flowforge/flowforge/internal/workflow/state"
	"github.com/flowforge/flowforge/pkg/werrors"
	"golang.org/x/sync/semaphore"
)

// StepProgress is one status-transition event, emitted non-blockingly to
// the Scheduler's registered callback.
type StepProgress struct {
	StepName   string
	Status     state.Status
	Err        error
	StepNumber int
	TotalSteps int
	GroupName  string
	TaskID     string
}

// ProgressFunc receives every step-progress event; the end-of-run summary
// goes to SummaryFunc instead. It must be non-blocking, idempotent, and safe to call from multiple
// goroutines.
type ProgressFunc func(StepProgress)

// PipelineSummary is emitted once, after both phases complete.
type PipelineSummary struct {
	TaskID       string
	Completed    []string
	Failed       []string
	Skipped      []string
	Suspended    []string
	ArtifactsDir string
}

// SummaryFunc receives the single end-of-run summary event.
type SummaryFunc func(PipelineSummary)

// SuspendContext accumulates cooperative-suspension requests observed
// during a run, consumed by the CheckpointManager if non-empty once the
// normal phase drains.
type SuspendContext struct {
	mu      sync.Mutex
	Reasons map[string]string
	Data    map[string]map[string]interface{}
	Steps   []string
}

func newSuspendContext() *SuspendContext {
	return &SuspendContext{Reasons: map[string]string{}, Data: map[string]map[string]interface{}{}}
}

func (s *SuspendContext) record(stepName string, info werrors.SuspendInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reasons[stepName] = info.Reason
	s.Data[stepName] = info.Data
	s.Steps = append(s.Steps, stepName)
}

func (s *SuspendContext) empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Steps) == 0
}

// Checkpointer persists a suspended run so it can later be resumed,
// implemented by internal/checkpoint.Manager. Scheduler depends only on this
// narrow interface so the engine package never imports the checkpoint
// package directly (checkpoint, in turn, imports engine/state/workflow).
type Checkpointer interface {
	Save(taskID, pipelineID string, dag []state.StepSnapshot, ctxSnapshot map[string]interface{}, suspended []string, reasons map[string]string, data map[string]map[string]interface{}) (checkpointID string, err error)
}

// PipelineRegistry resolves a "pipeline.<id>" step reference to the nested
// pipeline definition it names, letting a step recursively compose another
// pipeline instead of invoking a leaf plugin.
type PipelineRegistry interface {
	Get(id string) (workflow.PipelineDefinition, bool)
}

// Scheduler is the DAGExecutor: it drives a pipeline's normal and finally
// phases, dispatching ready steps through the resolver/invoker/output
// pipeline (or to the loop strategy) under a bounded concurrency budget.
type Scheduler struct {
	Catalog    *plugin.Catalog
	Pipelines  PipelineRegistry
	Sem        *semaphore.Weighted
	Resolver   Resolver
	Invoker    *Invoker
	Output     *OutputHandler
	Progress   ProgressFunc
	Summary    SummaryFunc
	Checkpoint Checkpointer // optional; nil disables persistence of suspended runs

	ArtifactsDir string
}

// NewScheduler builds a Scheduler sharing one concurrency budget, catalog,
// and artifact recorder across a run and every loop body it spawns.
func NewScheduler(catalog *plugin.Catalog, maxWorkers int64, recorder ArtifactRecorder) *Scheduler {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Scheduler{
		Catalog:  catalog,
		Sem:      semaphore.NewWeighted(maxWorkers),
		Resolver: Resolver{},
		Invoker:  NewInvoker(DefaultRetryPolicy()),
		Output:   NewOutputHandler(recorder),
		Progress: func(StepProgress) {},
		Summary:  func(PipelineSummary) {},
	}
}

type taskOutcome struct {
	stepName  string
	artifacts []state.ArtifactRef
	err       error
	suspend   *werrors.PluginSuspendedError
}

// Run executes one pipeline against dagState and runCtx: parallel-group
// labeling, the normal phase (with checkpointing of any suspension), the
// finally phase, and a final summary. It does no validation itself: deps is
// the normalized dependency map returned by Validator.Validate, and
// dagState/runCtx may already carry state from a prior checkpoint (see
// checkpoint.Restore).
func (s *Scheduler) Run(ctx context.Context, p workflow.PipelineDefinition, deps map[string][]state.ParsedDependency, dagState *state.DAGState, runCtx *Context) error {
	steps := p.StepByName()
	for name := range deps {
		dagState.EnsureStep(name)
	}

	groups := parallelGroups(p)
	total := len(p.Steps)

	normalErr := s.runPhase(ctx, p, steps, deps, dagState, runCtx, groups, total)
	normalErr = s.persistSuspension(p, dagState, runCtx, normalErr)

	finallyErrors := s.runFinallyPhase(ctx, p, steps, deps, dagState, runCtx, groups, total)

	dagState.Finish()
	s.Summary(PipelineSummary{
		TaskID:       runCtx.TaskID(),
		Completed:    dagState.CompletedSteps(),
		Failed:       dagState.FailedSteps(),
		Skipped:      dagState.SkippedSteps(),
		Suspended:    dagState.SuspendedSteps(),
		ArtifactsDir: s.ArtifactsDir,
	})

	if normalErr == nil && len(finallyErrors) == 0 {
		return nil
	}
	return &werrors.PipelineExecutionError{NormalErr: normalErr, FinallyErrors: finallyErrors}
}

// persistSuspension turns a bare PipelineSuspendedError (CheckpointID "")
// into one carrying a real checkpoint id, by delegating to the configured
// Checkpointer. With no Checkpointer configured, the suspension is returned
// unchanged — the caller gets no durable resume point, only the in-memory
// error.
func (s *Scheduler) persistSuspension(p workflow.PipelineDefinition, dagState *state.DAGState, runCtx *Context, runErr error) error {
	var suspended *werrors.PipelineSuspendedError
	if !errors.As(runErr, &suspended) || s.Checkpoint == nil {
		return runErr
	}
	id, err := s.Checkpoint.Save(runCtx.TaskID(), p.ID, dagState.Export(), runCtx.FlattenedSnapshot(), suspended.Suspended, suspended.Reasons, suspended.Data)
	if err != nil {
		return werrors.NewDAGExecutionError("", fmt.Errorf("checkpoint save failed after suspension: %w", err))
	}
	suspended.CheckpointID = id
	return suspended
}

// runPhase implements §4.7.1 over the non-finally steps;
// runFinallyPhase below reuses the same dispatch/outcome machinery for
// §4.7.2 with the finally-specific readiness predicate and never-abort
// semantics.
func (s *Scheduler) runPhase(ctx context.Context, p workflow.PipelineDefinition, steps map[string]workflow.StepConfig, deps map[string][]state.ParsedDependency, dagState *state.DAGState, runCtx *Context, groups map[string]string, total int) error {
	outcomes := make(chan taskOutcome)
	inFlight := map[string]bool{}
	suspend := newSuspendContext()
	aborted := false

	for {
		for _, step := range p.Steps {
			if step.IsFinally || inFlight[step.Name] {
				continue
			}
			if dagState.Status(step.Name) != state.Pending {
				continue
			}
			lookup := contextOutputLookup(runCtx)
			if reason := dagState.Blocked(deps[step.Name], lookup); reason != state.NotBlocked {
				dagState.MarkSkipped(step.Name)
				s.emit(dagState, runCtx, groups, total, step.Name)
				continue
			}
			// aborted only suppresses new dispatch; the skip sweep above must
			// still run every pass so dependents of the step that triggered the
			// abort reach SKIPPED instead of being stranded PENDING.
			if aborted || !dagState.IsReady(step.Name, deps[step.Name], lookup) {
				continue
			}

			inFlight[step.Name] = true
			dagState.MarkRunning(step.Name)
			s.emit(dagState, runCtx, groups, total, step.Name)

			go s.dispatch(ctx, step, runCtx, outcomes)
		}

		if len(inFlight) == 0 {
			break
		}

		outcome := <-outcomes
		delete(inFlight, outcome.stepName)

		switch {
		case outcome.suspend != nil:
			dagState.MarkSuspended(outcome.stepName, outcome.suspend)
			suspend.record(outcome.stepName, outcome.suspend.Info)
		case outcome.err != nil:
			dagState.MarkFailed(outcome.stepName, outcome.err)
			if steps[outcome.stepName].FailOnError {
				aborted = true
			}
		default:
			dagState.MarkCompleted(outcome.stepName, outcome.artifacts)
		}
		s.emit(dagState, runCtx, groups, total, outcome.stepName)
	}

	if !suspend.empty() {
		return werrors.NewPipelineSuspended("", suspend.Steps, suspend.Reasons, suspend.Data, "one or more steps suspended")
	}
	for _, name := range dagState.FailedSteps() {
		if steps[name].FailOnError {
			return werrors.NewDAGExecutionError(name, dagState.StepErr(name))
		}
	}
	return nil
}

// runFinallyPhase implements §4.7.2: only is_finally steps, readiness
// gated on every non-finally step being terminal, and failures collected
// rather than aborting the phase.
func (s *Scheduler) runFinallyPhase(ctx context.Context, p workflow.PipelineDefinition, steps map[string]workflow.StepConfig, deps map[string][]state.ParsedDependency, dagState *state.DAGState, runCtx *Context, groups map[string]string, total int) []error {
	var nonFinally []string
	var finallySteps []string
	for _, step := range p.Steps {
		if step.IsFinally {
			finallySteps = append(finallySteps, step.Name)
		} else {
			nonFinally = append(nonFinally, step.Name)
		}
	}
	if len(finallySteps) == 0 {
		return nil
	}

	outcomes := make(chan taskOutcome)
	inFlight := map[string]bool{}
	var errs []error

	for {
		allTerminal := dagState.AllTerminal(nonFinally)
		for _, name := range finallySteps {
			if inFlight[name] || dagState.Status(name) != state.Pending {
				continue
			}
			if !dagState.IsReadyForFinally(name, deps[name], allTerminal) {
				continue
			}
			step := steps[name]
			inFlight[name] = true
			dagState.MarkRunning(name)
			s.emit(dagState, runCtx, groups, total, name)
			go s.dispatch(ctx, step, runCtx, outcomes)
		}

		// A stall here (pending finally steps, none ready) means a finally
		// step depends on another finally step that will never complete;
		// the phase exits rather than deadlocking.
		if len(inFlight) == 0 {
			break
		}

		outcome := <-outcomes
		delete(inFlight, outcome.stepName)
		switch {
		case outcome.suspend != nil:
			dagState.MarkSuspended(outcome.stepName, outcome.suspend)
		case outcome.err != nil:
			dagState.MarkFailed(outcome.stepName, outcome.err)
			errs = append(errs, outcome.err)
		default:
			dagState.MarkCompleted(outcome.stepName, outcome.artifacts)
		}
		s.emit(dagState, runCtx, groups, total, outcome.stepName)
	}
	return errs
}

// dispatch runs one step to completion (including semaphore acquisition)
// and reports the outcome on the shared channel. Loop steps are handed to
// LoopStrategy instead of the resolver/invoker/output pipeline.
func (s *Scheduler) dispatch(ctx context.Context, step workflow.StepConfig, runCtx *Context, outcomes chan<- taskOutcome) {
	if err := s.Sem.Acquire(ctx, 1); err != nil {
		outcomes <- taskOutcome{stepName: step.Name, err: err}
		return
	}
	defer s.Sem.Release(1)

	stepCtx := runCtx.SpawnChild(nil)

	if step.IsLoop() {
		artifacts, err := (&LoopStrategy{Scheduler: s}).Run(ctx, step, stepCtx)
		runCtx.Update(stepCtx.Snapshot())
		outcomes <- classify(step.Name, artifacts, err)
		return
	}

	if nestedID, ok := strings.CutPrefix(step.Plugin, nestedPipelinePrefix); ok {
		err := s.runNested(ctx, nestedID, step, stepCtx)
		runCtx.Update(stepCtx.Snapshot())
		outcomes <- classify(step.Name, nil, err)
		return
	}

	input, err := s.Resolver.Resolve(step, stepCtx)
	if err != nil {
		outcomes <- taskOutcome{stepName: step.Name, err: err}
		return
	}

	p, err := s.Catalog.Get(step.Plugin)
	if err != nil {
		outcomes <- taskOutcome{stepName: step.Name, err: err}
		return
	}

	result, err := s.Invoker.Invoke(ctx, p, step.Name, input, stepCtx)
	if err != nil {
		outcomes <- classify(step.Name, nil, err)
		return
	}

	artifacts, err := s.Output.Handle(step.Name, result, stepCtx)
	runCtx.Update(stepCtx.Snapshot())
	outcomes <- taskOutcome{stepName: step.Name, artifacts: artifacts, err: err}
}

func classify(stepName string, artifacts []state.ArtifactRef, err error) taskOutcome {
	var suspended *werrors.PluginSuspendedError
	if errors.As(err, &suspended) {
		return taskOutcome{stepName: stepName, suspend: suspended}
	}
	return taskOutcome{stepName: stepName, artifacts: artifacts, err: err}
}

func (s *Scheduler) emit(dagState *state.DAGState, runCtx *Context, groups map[string]string, total int, name string) {
	st := dagState.Get(name)
	s.Progress(StepProgress{
		StepName:   name,
		Status:     st.Status,
		Err:        st.Err,
		StepNumber: dagState.StepNumber(name),
		TotalSteps: total,
		GroupName:  groups[name],
		TaskID:     runCtx.TaskID(),
	})
}

// runNested executes a "pipeline.<id>" step by recursively running the
// referenced definition as a sub-pipeline sharing this scheduler's catalog,
// registry, and concurrency budget. The step's own config becomes the
// nested run's initial context overrides; its completion is recorded as a
// normal step output so downstream steps can read it like any other.
func (s *Scheduler) runNested(ctx context.Context, nestedID string, step workflow.StepConfig, stepCtx *Context) error {
	if s.Pipelines == nil {
		return plugin.NewPluginError(step.Name, step.Plugin, "nested pipeline execution requires a configured PipelineRegistry", nil)
	}
	nested, ok := s.Pipelines.Get(nestedID)
	if !ok {
		return plugin.NewPluginError(step.Name, step.Plugin, fmt.Sprintf("nested pipeline %q not found", nestedID), nil)
	}

	deps, err := NewValidator(s.Catalog).Validate(nested)
	if err != nil {
		return err
	}

	nestedCtx := stepCtx.SpawnChild(step.Config)
	dagState := state.New(stepNames(nested))
	sub := *s
	if runErr := sub.Run(ctx, nested, deps, dagState, nestedCtx); runErr != nil {
		var suspended *werrors.PipelineSuspendedError
		if errors.As(runErr, &suspended) {
			return werrors.NewPluginSuspended(step.Name, "nested pipeline suspended", map[string]interface{}{"checkpoint_id": suspended.CheckpointID})
		}
		return runErr
	}

	stepCtx.Update(nestedCtx.Snapshot())
	_, err = s.Output.Handle(step.Name, plugin.Result{Output: plugin.Output{"completed_steps": dagState.CompletedSteps()}}, stepCtx)
	return err
}

func stepNames(p workflow.PipelineDefinition) []string {
	names := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		names[i] = step.Name
	}
	return names
}

func contextOutputLookup(ctx *Context) state.OutputLookup {
	return func(stepName string) (interface{}, bool) {
		return ctx.Get(stepName)
	}
}

// parallelGroups assigns steps sharing an identical dependency set to the
// same reporting group, purely for progress display (§4.7 step 5).
func parallelGroups(p workflow.PipelineDefinition) map[string]string {
	bySignature := map[string][]string{}
	for _, step := range p.Steps {
		names := append([]string(nil), step.DependencyNames()...)
		sort.Strings(names)
		sig := strings.Join(names, ",")
		bySignature[sig] = append(bySignature[sig], step.Name)
	}
	groups := map[string]string{}
	for sig, members := range bySignature {
		if len(members) < 2 {
			groups[members[0]] = members[0]
			continue
		}
		label := fmt.Sprintf("group(%s)", strings.Join(members, "+"))
		_ = sig
		for _, name := range members {
			groups[name] = label
		}
	}
	return groups
}
