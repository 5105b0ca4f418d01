// Package state implements the per-step and per-run state machine: Status
// transitions, readiness predicates, and the derived sets a scheduler needs
// to decide what runs next.
package state

import (
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle of a single step within one run.
type Status string

const (
	Pending   Status = "PENDING"
	Running   Status = "RUNNING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
	Skipped   Status = "SKIPPED"
	Suspended Status = "SUSPENDED"
)

// IsTerminal reports whether a step in this status will not transition
// again during the current run (SUSPENDED is terminal for the run but
// re-entrant on resume; see DAGState.Reopen).
func (s Status) IsTerminal() bool {
	switch s {
	case Completed, Failed, Skipped, Suspended:
		return true
	default:
		return false
	}
}

// ArtifactRef is the lightweight descriptor a StepState retains for each
// artifact a plugin saved during its invocation.
type ArtifactRef struct {
	ID       string
	Filename string
}

// StepState is the mutable record of one step's progress through a run.
type StepState struct {
	Name           string
	Status         Status
	StartTime      *time.Time
	EndTime        *time.Time
	Err            error
	SavedArtifacts []ArtifactRef
}

// ParsedDependency is the normalized form of a StepConfig dependency entry,
// produced by the DAGValidator once plugin references and cycles have been
// checked. IsConditional distinguishes a bare dependency from one gated on
// the source step's recorded output.
type ParsedDependency struct {
	StepName      string
	IsConditional bool
	Predicate     string
}

// OutputLookup resolves a step's recorded output for conditional-dependency
// evaluation, without requiring this package to depend on the context
// implementation.
type OutputLookup func(stepName string) (output interface{}, ok bool)

// DAGState owns every StepState for one run plus stable declaration-order
// numbering used for report ordering and ready-step tie-breaking.
type DAGState struct {
	mu          sync.Mutex
	steps       map[string]*StepState
	stepNumbers map[string]int
	order       []string
	StartTime   time.Time
	EndTime     *time.Time
}

// New initializes every step as PENDING in declaration order.
func New(stepNames []string) *DAGState {
	d := &DAGState{
		steps:       make(map[string]*StepState, len(stepNames)),
		stepNumbers: make(map[string]int, len(stepNames)),
		order:       append([]string(nil), stepNames...),
		StartTime:   time.Now(),
	}
	for i, name := range stepNames {
		d.steps[name] = &StepState{Name: name, Status: Pending}
		d.stepNumbers[name] = i
	}
	return d
}

// EnsureStep adds a step as PENDING if a checkpoint's DAGState predates a
// pipeline-definition addition, tolerating minor pipeline evolution across
// resumes. A step the checkpoint knows but the current definition lacks is
// not rejected here or in checkpoint.Restore; it stays in the DAGState with
// its recorded status.
func (d *DAGState) EnsureStep(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.steps[name]; ok {
		return
	}
	d.steps[name] = &StepState{Name: name, Status: Pending}
	d.stepNumbers[name] = len(d.order)
	d.order = append(d.order, name)
}

// StepNumber returns the declaration-order index used for tie-breaking and
// reporting.
func (d *DAGState) StepNumber(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stepNumbers[name]
}

// Get returns a copy of the current state for a step.
func (d *DAGState) Get(name string) StepState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.steps[name]
	if s == nil {
		return StepState{Name: name, Status: Pending}
	}
	return *s
}

// Status is a convenience accessor equivalent to Get(name).Status.
func (d *DAGState) Status(name string) Status {
	return d.Get(name).Status
}

func matchesPredicate(output interface{}, predicate string) bool {
	if m, ok := output.(map[string]interface{}); ok {
		if v, ok := m["status"]; ok {
			return fmt.Sprintf("%v", v) == predicate
		}
		return false
	}
	return fmt.Sprintf("%v", output) == predicate
}

// IsReady implements DAGState.is_ready: true iff the step is PENDING, every
// non-conditional dependency is COMPLETED, and every conditional
// dependency's recorded output satisfies its predicate.
func (d *DAGState) IsReady(name string, deps []ParsedDependency, lookup OutputLookup) bool {
	if d.Status(name) != Pending {
		return false
	}
	for _, dep := range deps {
		depStatus := d.Status(dep.StepName)
		if depStatus != Completed {
			return false
		}
		if dep.IsConditional {
			output, ok := lookup(dep.StepName)
			if !ok || !matchesPredicate(output, dep.Predicate) {
				return false
			}
		}
	}
	return true
}

// IsReadyForFinally implements is_ready_for_finally: a finally step runs
// once every non-finally step has reached a terminal state, honoring any
// dependency it declares among other finally steps.
func (d *DAGState) IsReadyForFinally(name string, deps []ParsedDependency, allNonFinallyTerminal bool) bool {
	if !allNonFinallyTerminal {
		return false
	}
	if d.Status(name) != Pending {
		return false
	}
	for _, dep := range deps {
		if !d.Status(dep.StepName).IsTerminal() {
			return false
		}
	}
	return true
}

// SkipReason classifies why IsBlocked returned true, so the scheduler can
// mark SKIPPED with an accurate message.
type SkipReason int

const (
	NotBlocked SkipReason = iota
	BlockedByFailedDependency
	BlockedByUnmetPredicate
)

// Blocked reports whether a PENDING step can never become ready: some
// dependency FAILED or was SKIPPED (whatever its fail_on_error setting), or
// a conditional dependency
// COMPLETED with an output that will never satisfy its predicate (outputs
// are immutable once recorded, so "unmet now" means "unmet forever").
func (d *DAGState) Blocked(deps []ParsedDependency, lookup OutputLookup) SkipReason {
	for _, dep := range deps {
		status := d.Status(dep.StepName)
		if status == Failed || status == Skipped {
			return BlockedByFailedDependency
		}
		if dep.IsConditional && status == Completed {
			output, ok := lookup(dep.StepName)
			if !ok || !matchesPredicate(output, dep.Predicate) {
				return BlockedByUnmetPredicate
			}
		}
	}
	return NotBlocked
}

func (d *DAGState) transition(name string, status Status, mutate func(*StepState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.steps[name]
	if !ok {
		s = &StepState{Name: name}
		d.steps[name] = s
	}
	s.Status = status
	if mutate != nil {
		mutate(s)
	}
}

// MarkRunning transitions a step to RUNNING and stamps its start time.
func (d *DAGState) MarkRunning(name string) {
	now := time.Now()
	d.transition(name, Running, func(s *StepState) { s.StartTime = &now; s.Err = nil })
}

// MarkCompleted transitions a step to COMPLETED, recording its artifacts.
func (d *DAGState) MarkCompleted(name string, artifacts []ArtifactRef) {
	now := time.Now()
	d.transition(name, Completed, func(s *StepState) {
		s.EndTime = &now
		s.SavedArtifacts = artifacts
		s.Err = nil
	})
}

// MarkFailed transitions a step to FAILED with the triggering error.
func (d *DAGState) MarkFailed(name string, err error) {
	now := time.Now()
	d.transition(name, Failed, func(s *StepState) { s.EndTime = &now; s.Err = err })
}

// MarkSkipped transitions a step to SKIPPED.
func (d *DAGState) MarkSkipped(name string) {
	now := time.Now()
	d.transition(name, Skipped, func(s *StepState) { s.EndTime = &now })
}

// MarkSuspended transitions a step to SUSPENDED, recording the suspension
// as its error for reporting purposes.
func (d *DAGState) MarkSuspended(name string, suspendErr error) {
	now := time.Now()
	d.transition(name, Suspended, func(s *StepState) { s.EndTime = &now; s.Err = suspendErr })
}

// MarkCompletedFromSuspension resumes a previously-suspended step directly
// to COMPLETED, as when resume data supplies a synthesized output instead
// of re-invoking the plugin.
func (d *DAGState) MarkCompletedFromSuspension(name string, clearError bool) {
	now := time.Now()
	d.transition(name, Completed, func(s *StepState) {
		s.EndTime = &now
		if clearError {
			s.Err = nil
		}
	})
}

// ClearStepError resets a step's error before retrying it on resume,
// without changing its status (the caller is responsible for also
// transitioning status back to PENDING, typically via Reopen).
func (d *DAGState) ClearStepError(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.steps[name]; ok {
		s.Err = nil
	}
}

// Reopen moves a SUSPENDED step back to PENDING so the scheduler considers
// it for re-execution after resume.
func (d *DAGState) Reopen(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.steps[name]; ok {
		s.Status = Pending
		s.Err = nil
		s.StartTime = nil
		s.EndTime = nil
	}
}

func (d *DAGState) names(pred func(Status) bool) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, name := range d.order {
		if pred(d.steps[name].Status) {
			out = append(out, name)
		}
	}
	return out
}

func (d *DAGState) RunningSteps() []string   { return d.names(func(s Status) bool { return s == Running }) }
func (d *DAGState) CompletedSteps() []string { return d.names(func(s Status) bool { return s == Completed }) }
func (d *DAGState) FailedSteps() []string    { return d.names(func(s Status) bool { return s == Failed }) }
func (d *DAGState) SkippedSteps() []string   { return d.names(func(s Status) bool { return s == Skipped }) }
func (d *DAGState) SuspendedSteps() []string { return d.names(func(s Status) bool { return s == Suspended }) }

// AllTerminal reports whether every step in the given set has reached a
// terminal status, used to gate the finally phase's readiness query.
func (d *DAGState) AllTerminal(names []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range names {
		s := d.steps[n]
		if s == nil || !s.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// Finish stamps the run's end time, called once both phases complete.
func (d *DAGState) Finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	d.EndTime = &now
}

// StepErr returns the typed error recorded against a step, or nil.
func (d *DAGState) StepErr(name string) error {
	return d.Get(name).Err
}

// StepSnapshot is the serializable form of one step's state, produced by
// Export and consumed by Restore. Err is flattened to its message since the
// typed error hierarchy in pkg/werrors does not round-trip through JSON.
type StepSnapshot struct {
	Name           string
	Status         Status
	StartTime      *time.Time
	EndTime        *time.Time
	ErrMsg         string
	SavedArtifacts []ArtifactRef
}

// Export returns a serializable snapshot of every step, in declaration
// order, for the CheckpointManager to persist alongside the run context.
func (d *DAGState) Export() []StepSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]StepSnapshot, 0, len(d.order))
	for _, name := range d.order {
		s := d.steps[name]
		snap := StepSnapshot{
			Name:           s.Name,
			Status:         s.Status,
			StartTime:      s.StartTime,
			EndTime:        s.EndTime,
			SavedArtifacts: append([]ArtifactRef(nil), s.SavedArtifacts...),
		}
		if s.Err != nil {
			snap.ErrMsg = s.Err.Error()
		}
		out = append(out, snap)
	}
	return out
}

// Restore rebuilds a DAGState from a snapshot taken by Export, preserving
// declaration order and step numbering. A restored step's Err is a plain
// error carrying its original message, not the original typed value.
func Restore(snapshot []StepSnapshot) *DAGState {
	names := make([]string, len(snapshot))
	for i, s := range snapshot {
		names[i] = s.Name
	}
	d := New(names)
	for _, s := range snapshot {
		step := d.steps[s.Name]
		step.Status = s.Status
		step.StartTime = s.StartTime
		step.EndTime = s.EndTime
		step.SavedArtifacts = s.SavedArtifacts
		if s.ErrMsg != "" {
			step.Err = fmt.Errorf("%s", s.ErrMsg)
		}
	}
	return d
}
