package engine

import (
	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow/state"
)

// ArtifactRecorder persists an ArtifactSave and returns the lightweight ref
// the step state and context track. Implemented by internal/artifact.Store;
// kept as an interface here so the engine package never imports artifact.
type ArtifactRecorder interface {
	Record(taskID, stepName string, save plugin.ArtifactSave) (state.ArtifactRef, error)
}

// OutputHandler merges a plugin's result into the run context under the
// step's own namespace and records any saved artifacts.
type OutputHandler struct {
	Artifacts ArtifactRecorder
}

// NewOutputHandler builds an OutputHandler. recorder may be nil, in which
// case saved artifacts get a filename-based ref instead of being persisted.
func NewOutputHandler(recorder ArtifactRecorder) *OutputHandler {
	return &OutputHandler{Artifacts: recorder}
}

// Handle merges result.Output into ctx[step.Name] and records artifacts,
// appending refs to both the context's artifact list and the returned
// slice for the caller to attach to the step's StepState.
func (h *OutputHandler) Handle(stepName string, result plugin.Result, ctx *Context) ([]state.ArtifactRef, error) {
	ctx.Set(stepName, map[string]interface{}(result.Output))

	if len(result.Artifacts) == 0 {
		return nil, nil
	}

	refs := make([]state.ArtifactRef, 0, len(result.Artifacts))
	for _, save := range result.Artifacts {
		var ref state.ArtifactRef
		var err error
		if h.Artifacts != nil {
			ref, err = h.Artifacts.Record(ctx.TaskID(), stepName, save)
		} else {
			ref = state.ArtifactRef{ID: save.Filename, Filename: save.Filename}
		}
		if err != nil {
			return nil, plugin.NewPluginError(stepName, "", "failed to record artifact "+save.Filename, err)
		}
		ctx.AppendArtifact(ref)
		refs = append(refs, ref)
	}
	return refs, nil
}
