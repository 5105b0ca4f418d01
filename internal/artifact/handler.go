package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/flowforge/flowforge/internal/logging"
)

// CommandHandler runs artifact commands against a base directory, logging
// every command it processes and deduplicating saves whose content hash
// matches a file already on disk.
type CommandHandler struct {
	baseDir string
	handle  Handler

	mu     sync.Mutex
	log    []Command
	hashes map[string]uint64 // path -> content hash, to skip redundant writes
	audit  *logging.Audit
}

// SetAudit attaches an audit trail that Execute records every successful
// command to.
func (h *CommandHandler) SetAudit(audit *logging.Audit) {
	h.audit = audit
}

// NewCommandHandler builds a handler rooted at baseDir with the default
// middleware chain (filename validation, in-progress stamping).
func NewCommandHandler(baseDir string) *CommandHandler {
	h := &CommandHandler{baseDir: baseDir, hashes: map[string]uint64{}}
	h.handle = chain(h.execute, validateFilename, markInProgress)
	return h
}

// Execute runs one command through the middleware chain and appends it to
// the task's command log regardless of outcome.
func (h *CommandHandler) Execute(cmd Command) (Command, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	result, err := h.handle(cmd)
	h.mu.Lock()
	h.log = append(h.log, result)
	h.mu.Unlock()
	if err == nil {
		h.audit.ArtifactRecorded(result.TaskID, result.Subdir, string(result.Operation), result.Filename, len(result.Content))
	}
	return result, err
}

// TaskCommands returns every command previously executed for a task, in
// execution order.
func (h *CommandHandler) TaskCommands(taskID string) []Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Command
	for _, c := range h.log {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out
}

func (h *CommandHandler) path(cmd Command) string {
	dir := filepath.Join(h.baseDir, cmd.TaskID)
	if cmd.Subdir != "" {
		dir = filepath.Join(dir, cmd.Subdir)
	}
	return filepath.Join(dir, cmd.Filename)
}

// execute is the terminal handler: it applies the operation to disk. SAVE
// and UPDATE share the same atomic-write-then-rename path; DELETE removes
// the file and its hash entry.
func (h *CommandHandler) execute(cmd Command) (Command, error) {
	path := h.path(cmd)

	switch cmd.Operation {
	case OperationDelete:
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return cmd.withStatus(StatusFailed, err), err
		}
		h.mu.Lock()
		delete(h.hashes, path)
		h.mu.Unlock()
		return cmd.withStatus(StatusCompleted, nil), nil

	case OperationSave, OperationUpdate:
		sum := xxhash.Sum64(cmd.Content)
		cmd.Hash = fmt.Sprintf("%016x", sum)

		h.mu.Lock()
		existing, known := h.hashes[path]
		h.mu.Unlock()
		if known && existing == sum {
			return cmd.withStatus(StatusCompleted, nil), nil
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return cmd.withStatus(StatusFailed, err), err
		}
		if err := writeAtomic(path, cmd.Content); err != nil {
			return cmd.withStatus(StatusFailed, err), err
		}

		h.mu.Lock()
		h.hashes[path] = sum
		h.mu.Unlock()
		return cmd.withStatus(StatusCompleted, nil), nil

	default:
		err := fmt.Errorf("unknown artifact operation %q", cmd.Operation)
		return cmd.withStatus(StatusFailed, err), err
	}
}

// writeAtomic writes content to a temp file in the same directory as path,
// fsyncs it, then renames it into place — a rename within one filesystem is
// atomic, so a crash mid-write never leaves a partially-written artifact.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
