package plugin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flowforge/flowforge/pkg/werrors"
)

// ErrPluginNotFound is returned when a step's plugin reference does not
// resolve in the catalog.
type ErrPluginNotFound struct {
	Name string
}

func (e ErrPluginNotFound) Error() string {
	return fmt.Sprintf("plugin %q not found in catalog", e.Name)
}

// ErrCircularDependency is returned when the catalog's declared plugin
// dependencies form a cycle.
type ErrCircularDependency struct {
	Cycle []string
}

func (e ErrCircularDependency) Error() string {
	if len(e.Cycle) == 0 {
		return "circular plugin dependency detected"
	}
	sequence := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("circular plugin dependency: %s", strings.Join(sequence, " -> "))
}

// ErrVersionConflict reports a plugin version that does not satisfy a
// dependent's declared constraint.
type ErrVersionConflict struct {
	Plugin        string
	RequiredBy    string
	Constraint    string
	ActualVersion string
}

func (e ErrVersionConflict) Error() string {
	return fmt.Sprintf("plugin %q version %s does not satisfy constraint %s required by %q",
		e.Plugin, e.ActualVersion, e.Constraint, e.RequiredBy)
}

// ErrMissingDependency is returned when a declared plugin dependency is not
// registered in the catalog.
type ErrMissingDependency struct {
	Plugin     string
	Dependency string
}

func (e ErrMissingDependency) Error() string {
	return fmt.Sprintf("plugin %q declares dependency %q which is not registered", e.Plugin, e.Dependency)
}

// NewInputError, NewRetryableError, NewPluginError and NewSuspended are
// thin constructors over the shared werrors kinds, so the invoker's typed
// dispatch (§ PluginInvoker) only needs to know about one error hierarchy
// regardless of whether the failure originated here or in the resolver.
func NewInputError(stepName, field, message string, cause error) error {
	return werrors.NewInputError(stepName, field, message, cause)
}

func NewRetryableError(stepName string, attempt int, cause error) error {
	return werrors.NewRetryableError(stepName, attempt, cause)
}

func NewPluginError(stepName, pluginName, message string, cause error) error {
	return werrors.NewPluginError(stepName, pluginName, message, cause)
}

func NewSuspended(stepName, reason string, data map[string]interface{}) error {
	return werrors.NewPluginSuspended(stepName, reason, data)
}

// AsStepError recovers the typed step error from a plugin invocation, if
// any.
func AsStepError(err error) (werrors.StepError, bool) {
	var stepErr werrors.StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}
