// Package werrors defines the typed error kinds surfaced by the workflow
// core, mirroring the taxonomy a caller needs to decide whether to retry,
// skip, or abort.
package werrors

import "fmt"

// ValidationError reports a static (pre-run) problem with a pipeline
// definition. A run carrying a ValidationError never starts.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// InputError means a step's inputs could not be produced. It is terminal
// for the step and is never retried.
type InputError struct {
	StepName string
	Field    string
	Message  string
	Err      error
}

func NewInputError(stepName, field, message string, err error) error {
	return &InputError{StepName: stepName, Field: field, Message: message, Err: err}
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error [%s.%s]: %s", e.StepName, e.Field, e.Message)
}

func (e *InputError) Unwrap() error { return e.Err }
func (e *InputError) StepID() string { return e.StepName }

// RetryableError signals a transient plugin failure; the invoker retries
// with linear back-off up to a configured limit.
type RetryableError struct {
	StepName string
	Attempt  int
	Err      error
}

func NewRetryableError(stepName string, attempt int, err error) error {
	return &RetryableError{StepName: stepName, Attempt: attempt, Err: err}
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error [%s] (attempt %d): %v", e.StepName, e.Attempt, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }
func (e *RetryableError) StepID() string { return e.StepName }

// PluginError is a fatal plugin-level failure, terminal for the step.
type PluginError struct {
	StepName string
	Plugin   string
	Message  string
	Err      error
}

func NewPluginError(stepName, plugin, message string, err error) error {
	return &PluginError{StepName: stepName, Plugin: plugin, Message: message, Err: err}
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin error [%s/%s]: %s", e.StepName, e.Plugin, e.Message)
}

func (e *PluginError) Unwrap() error { return e.Err }
func (e *PluginError) StepID() string { return e.StepName }

// DAGExecutionError reports that a critical (fail_on_error=true) step
// failed terminally, aborting the normal execution phase.
type DAGExecutionError struct {
	StepName string
	Err      error
}

func NewDAGExecutionError(stepName string, err error) error {
	return &DAGExecutionError{StepName: stepName, Err: err}
}

func (e *DAGExecutionError) Error() string {
	return fmt.Sprintf("dag execution aborted by step %s: %v", e.StepName, e.Err)
}

func (e *DAGExecutionError) Unwrap() error { return e.Err }

// SuspendInfo carries the cooperative-suspension payload a plugin returns
// instead of a normal output.
type SuspendInfo struct {
	Reason string
	Data   map[string]interface{}
}

// PluginSuspendedError is returned by a plugin invocation to request
// cooperative suspension of the step. It is a control value, not a fatal
// error: the scheduler checkpoints and ends the run without marking it
// failed.
type PluginSuspendedError struct {
	StepName string
	Info     SuspendInfo
}

func NewPluginSuspended(stepName, reason string, data map[string]interface{}) error {
	return &PluginSuspendedError{StepName: stepName, Info: SuspendInfo{Reason: reason, Data: data}}
}

func (e *PluginSuspendedError) Error() string {
	return fmt.Sprintf("step %s suspended: %s", e.StepName, e.Info.Reason)
}

func (e *PluginSuspendedError) StepID() string { return e.StepName }

// PipelineSuspendedError terminates a run after a checkpoint has been
// written; it carries the checkpoint id and the set of steps suspended.
type PipelineSuspendedError struct {
	CheckpointID string
	Suspended    []string
	Reasons      map[string]string
	Data         map[string]map[string]interface{}
	Message      string
}

func NewPipelineSuspended(checkpointID string, suspended []string, reasons map[string]string, data map[string]map[string]interface{}, message string) error {
	return &PipelineSuspendedError{CheckpointID: checkpointID, Suspended: suspended, Reasons: reasons, Data: data, Message: message}
}

func (e *PipelineSuspendedError) Error() string {
	return fmt.Sprintf("pipeline suspended at checkpoint %s: %s", e.CheckpointID, e.Message)
}

// PipelineExecutionError aggregates every error observed during the normal
// phase and the finally phase of a single run.
type PipelineExecutionError struct {
	NormalErr     error
	FinallyErrors []error
}

func (e *PipelineExecutionError) Error() string {
	if e.NormalErr == nil && len(e.FinallyErrors) == 0 {
		return "pipeline execution error"
	}
	msg := "pipeline execution failed"
	if e.NormalErr != nil {
		msg += fmt.Sprintf("; normal phase: %v", e.NormalErr)
	}
	for _, fe := range e.FinallyErrors {
		msg += fmt.Sprintf("; finally: %v", fe)
	}
	return msg
}

// HasNormalError reports whether the normal phase produced an error.
func (e *PipelineExecutionError) HasNormalError() bool { return e.NormalErr != nil }

// HasFinallyErrors reports whether any finally step failed.
func (e *PipelineExecutionError) HasFinallyErrors() bool { return len(e.FinallyErrors) > 0 }

// StepError is implemented by every step-scoped error kind above, letting
// callers recover the originating step without a type switch.
type StepError interface {
	error
	StepID() string
}

var (
	_ StepError = (*InputError)(nil)
	_ StepError = (*RetryableError)(nil)
	_ StepError = (*PluginError)(nil)
	_ StepError = (*PluginSuspendedError)(nil)
)
