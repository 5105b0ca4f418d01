// Package checkpoint persists a suspended pipeline run to disk and restores
// it on resume: the DAGState, the flattened run context, and the
// per-step suspension metadata a plugin returned when it asked to pause.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/flowforge/flowforge/internal/logging"
	"github.com/flowforge/flowforge/internal/workflow/state"
)

// Checkpoint is the on-disk record of one suspended run.
type Checkpoint struct {
	ID         string                            `json:"id"`
	TaskID     string                            `json:"task_id"`
	PipelineID string                            `json:"pipeline_id"`
	CreatedAt  time.Time                         `json:"created_at"`
	Steps      []state.StepSnapshot              `json:"steps"`
	Context    map[string]interface{}            `json:"context"`
	Suspended  []string                          `json:"suspended"`
	Reasons    map[string]string                 `json:"reasons"`
	Data       map[string]map[string]interface{} `json:"data"`
}

// Manager reads and writes checkpoints under a base directory, one JSON
// file per checkpoint, and enforces that at most one resume of a given
// checkpoint is in flight at a time.
type Manager struct {
	dir   string
	audit *logging.Audit
}

// NewManager builds a Manager rooted at dir, creating it if necessary.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// SetAudit attaches an audit trail that Save and Load record events to.
// Optional: a Manager with no audit trail behaves exactly as before.
func (m *Manager) SetAudit(audit *logging.Audit) {
	m.audit = audit
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}

func (m *Manager) lockPath(id string) string {
	return filepath.Join(m.dir, id+".lock")
}

// Save implements engine.Checkpointer: it assigns a new checkpoint id and
// writes the checkpoint atomically (temp file, fsync, rename), so a crash
// mid-write never leaves a corrupt or partial checkpoint to resume from.
func (m *Manager) Save(taskID, pipelineID string, steps []state.StepSnapshot, ctxSnapshot map[string]interface{}, suspended []string, reasons map[string]string, data map[string]map[string]interface{}) (string, error) {
	id := uuid.NewString()
	cp := Checkpoint{
		ID:         id,
		TaskID:     taskID,
		PipelineID: pipelineID,
		CreatedAt:  time.Now(),
		Steps:      steps,
		Context:    ctxSnapshot,
		Suspended:  suspended,
		Reasons:    reasons,
		Data:       data,
	}
	if err := m.writeAtomic(cp); err != nil {
		return "", err
	}
	m.audit.CheckpointSaved(taskID, pipelineID, id, suspended)
	return id, nil
}

func (m *Manager) writeAtomic(cp Checkpoint) error {
	payload, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(m.dir, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, m.path(cp.ID)); err != nil {
		return fmt.Errorf("checkpoint: rename into place: %w", err)
	}
	return nil
}

// Load reads a checkpoint by id.
func (m *Manager) Load(id string) (Checkpoint, error) {
	var cp Checkpoint
	raw, err := os.ReadFile(m.path(id))
	if err != nil {
		return cp, fmt.Errorf("checkpoint: read %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &cp); err != nil {
		return cp, fmt.Errorf("checkpoint: unmarshal %s: %w", id, err)
	}
	m.audit.CheckpointResumed(cp.TaskID, id)
	return cp, nil
}

// Delete removes a checkpoint once its resume has completed successfully.
func (m *Manager) Delete(id string) error {
	if err := os.Remove(m.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete %s: %w", id, err)
	}
	return nil
}

// Restore rebuilds a resumable DAGState from a checkpoint. For each
// suspended step, overrides supplies an externally-provided resume payload
// (e.g. a human approval) keyed by step name: when present, the step is
// marked COMPLETED from its suspension and the override is merged into the
// returned context under the step's own namespace; when absent, the step is
// simply reopened to PENDING so the scheduler retries it.
func Restore(cp Checkpoint, overrides map[string]map[string]interface{}) (*state.DAGState, map[string]interface{}) {
	dag := state.Restore(cp.Steps)
	ctx := make(map[string]interface{}, len(cp.Context))
	for k, v := range cp.Context {
		ctx[k] = v
	}

	for _, name := range cp.Suspended {
		if override, ok := overrides[name]; ok {
			dag.ClearStepError(name)
			dag.MarkCompletedFromSuspension(name, true)
			ctx[name] = override
			continue
		}
		dag.Reopen(name)
	}
	return dag, ctx
}
