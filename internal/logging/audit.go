package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Audit is an append-only JSONL trail of the two events a resumable run
// must be able to reconstruct from disk alone: every checkpoint write and
// every artifact command. It is deliberately separate from Logger — the
// audit trail is a record a resume or a post-mortem reads back, not a
// human-facing stream, so it is built on zerolog rather than charmbracelet/log.
type Audit struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
}

// NewAudit opens (creating if necessary) <dir>/audit.jsonl for appending.
func NewAudit(dir string) (*Audit, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: create audit dir: %w", err)
	}
	path := filepath.Join(dir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open audit trail: %w", err)
	}
	return &Audit{
		file:   f,
		logger: zerolog.New(f).With().Timestamp().Logger(),
	}, nil
}

// Close closes the underlying file.
func (a *Audit) Close() error {
	if a == nil || a.file == nil {
		return nil
	}
	return a.file.Close()
}

// CheckpointSaved records that a run suspended and its state was persisted.
func (a *Audit) CheckpointSaved(taskID, pipelineID, checkpointID string, suspended []string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Info().
		Str("event", "checkpoint_saved").
		Str("task_id", taskID).
		Str("pipeline_id", pipelineID).
		Str("checkpoint_id", checkpointID).
		Strs("suspended_steps", suspended).
		Msg("checkpoint saved")
}

// CheckpointResumed records that a checkpoint was loaded back into a run.
func (a *Audit) CheckpointResumed(taskID, checkpointID string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Info().
		Str("event", "checkpoint_resumed").
		Str("task_id", taskID).
		Str("checkpoint_id", checkpointID).
		Msg("checkpoint resumed")
}

// ArtifactRecorded records one artifact command (save/update/delete).
func (a *Audit) ArtifactRecorded(taskID, stepName, operation, filename string, bytes int) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger.Info().
		Str("event", "artifact_command").
		Str("task_id", taskID).
		Str("step", stepName).
		Str("operation", operation).
		Str("filename", filename).
		Int("bytes", bytes).
		Msg("artifact command executed")
}
