package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/flowforge/flowforge/internal/workflow"
)

// Registry is the concrete engine.PipelineRegistry: every pipeline loaded
// from a directory of YAML files, keyed by its declared id so nested
// "pipeline.<id>" steps can resolve siblings.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]workflow.PipelineDefinition
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[string]workflow.PipelineDefinition)}
}

// Get implements engine.PipelineRegistry.
func (r *Registry) Get(id string) (workflow.PipelineDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelines[id]
	return p, ok
}

// Put registers one pipeline under its id, overwriting any prior entry.
func (r *Registry) Put(p workflow.PipelineDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[p.ID] = p
}

// IDs returns every registered pipeline id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.pipelines))
	for id := range r.pipelines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir parses every *.yaml/*.yml file directly under dir as a pipeline
// definition and registers it. It returns the first parse error it hits,
// named with the offending file so a bad pipeline in a large catalog
// directory is easy to locate.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("config: read pipeline dir %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read pipeline %s: %w", path, err)
		}
		def, err := ParsePipeline(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", path, err)
		}
		if def.ID == "" {
			def.ID = strings.TrimSuffix(entry.Name(), ext)
		}
		r.Put(def)
	}
	return nil
}
