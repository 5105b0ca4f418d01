package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// List returns every checkpoint id found under the manager's directory,
// discovered via a doublestar glob so checkpoints nested under per-pipeline
// subdirectories (a future layout) are found the same way as a flat one.
func (m *Manager) List() ([]string, error) {
	root := os.DirFS(m.dir)
	matches, err := doublestar.Glob(root, "**/*.json")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: glob: %w", err)
	}
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		base := filepath.Base(match)
		ids = append(ids, strings.TrimSuffix(base, ".json"))
	}
	return ids, nil
}

// staleLockAge is how long a lock file may exist before Resume treats it as
// abandoned (its owning process died without releasing it) rather than
// active.
const staleLockAge = 10 * time.Minute

// AcquireResumeLock enforces that at most one resume of a checkpoint runs
// at a time: it creates the lock file exclusively (O_EXCL), failing if one
// already exists and is not stale. A stale lock (older than staleLockAge)
// is removed and the acquire retried once.
func (m *Manager) AcquireResumeLock(id string) (func(), error) {
	path := m.lockPath(id)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("checkpoint: acquire resume lock: %w", err)
		}
		if !m.clearIfStale(path) {
			return nil, fmt.Errorf("checkpoint: resume of %s already in progress", id)
		}
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("checkpoint: acquire resume lock after stale cleanup: %w", err)
		}
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	return func() { os.Remove(path) }, nil
}

func (m *Manager) clearIfStale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) < staleLockAge {
		return false
	}
	return os.Remove(path) == nil
}
