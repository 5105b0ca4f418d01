package workflow

import "github.com/flowforge/flowforge/pkg/werrors"

// NewValidationError is a thin constructor so workflow's structural checks
// surface the same ValidationError type the engine's DAGValidator raises,
// letting callers use a single errors.As(&werrors.ValidationError{}) check
// regardless of which layer rejected the pipeline.
func NewValidationError(field, message string, cause error) error {
	return werrors.NewValidationError(field, message, cause)
}
