package artifact

import (
	"path/filepath"

	"github.com/flowforge/flowforge/internal/logging"
	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow/state"
)

// Store is the concrete ArtifactRecorder: it turns a plugin's ArtifactSave
// into a SAVE command, runs it through the CommandHandler, and returns the
// ref the engine attaches to the step's state and run context. It satisfies
// engine.ArtifactRecorder structurally, without internal/artifact importing
// internal/engine.
type Store struct {
	handler *CommandHandler
}

// NewStore builds a Store rooted at baseDir (e.g. "<data-dir>/artifacts").
func NewStore(baseDir string) *Store {
	return &Store{handler: NewCommandHandler(baseDir)}
}

// SetAudit attaches an audit trail that every successful artifact command is
// recorded to.
func (s *Store) SetAudit(audit *logging.Audit) {
	s.handler.SetAudit(audit)
}

// Record persists save under taskID/stepName and returns its ref.
func (s *Store) Record(taskID, stepName string, save plugin.ArtifactSave) (state.ArtifactRef, error) {
	subdir := stepName
	if save.Subdir != "" {
		subdir = filepath.Join(stepName, save.Subdir)
	}
	cmd := Command{
		Operation:   OperationSave,
		TaskID:      taskID,
		Filename:    save.Filename,
		Content:     save.Content,
		ContentType: save.ContentType,
		Subdir:      subdir,
		Metadata:    save.Metadata,
	}
	_, err := s.handler.Execute(cmd)
	if err != nil {
		return state.ArtifactRef{}, err
	}
	return state.ArtifactRef{
		ID:       taskID + "/" + subdir + "/" + save.Filename,
		Filename: save.Filename,
	}, nil
}

// TaskArtifacts returns every command the store has executed for a task,
// for a checkpoint or audit trail to enumerate.
func (s *Store) TaskArtifacts(taskID string) []Command {
	return s.handler.TaskCommands(taskID)
}
