package engine

import (
	"sync"

	"github.com/flowforge/flowforge/internal/workflow/state"
)

// LoopScope records which loop iteration, if any, a context frame belongs
// to, so plugins and template expansion can bind item_name/index_name.
type LoopScope struct {
	StepName string
	Index    int
	Item     interface{}
	HasItem  bool
}

// Context is the keyed data store shared by a pipeline run. It is
// implemented as a chain of copy-on-write frames: SpawnChild pushes a new
// frame whose writes are local until explicitly merged back with Update.
// Reads fall through to ancestor frames when a key is absent locally.
type Context struct {
	mu     sync.RWMutex
	data   map[string]interface{}
	parent *Context

	taskID     string
	pipelineID string
	resumeData map[string]interface{} // step name -> resume payload

	artifacts []state.ArtifactRef
	loop      *LoopScope
}

// New creates the root context for one run.
func New(taskID, pipelineID string, resumeData map[string]interface{}) *Context {
	if resumeData == nil {
		resumeData = map[string]interface{}{}
	}
	return &Context{
		data:       make(map[string]interface{}),
		taskID:     taskID,
		pipelineID: pipelineID,
		resumeData: resumeData,
	}
}

// SpawnChild returns a new frame layered on top of this one. overrides are
// written into the child's own frame immediately, shadowing the parent
// without mutating it.
func (c *Context) SpawnChild(overrides map[string]interface{}) *Context {
	child := &Context{
		data:       make(map[string]interface{}, len(overrides)),
		parent:     c,
		taskID:     c.taskID,
		pipelineID: c.pipelineID,
		resumeData: c.resumeData,
	}
	for k, v := range overrides {
		child.data[k] = v
	}
	return child
}

// TaskID returns the run identity, constant across every frame.
func (c *Context) TaskID() string { return c.taskID }

// PipelineID returns the optional pipeline identity.
func (c *Context) PipelineID() string { return c.pipelineID }

// Get reads a key, checking this frame then falling through to ancestors.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	v, ok := c.data[key]
	c.mu.RUnlock()
	if ok {
		return v, true
	}
	if c.parent != nil {
		return c.parent.Get(key)
	}
	return nil, false
}

// Set writes a key into this frame only.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
}

// Update merges a map of keys into this frame, used when an iteration or
// step scope's accumulated data is folded into its parent.
func (c *Context) Update(values map[string]interface{}) {
	c.mu.Lock()
	for k, v := range values {
		c.data[k] = v
	}
	c.mu.Unlock()
}

// Snapshot returns a shallow copy of this frame's own data, not including
// ancestors — used for checkpointing and for merge-back after a child
// scope completes.
func (c *Context) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// FlattenedSnapshot returns every key visible from this frame, including
// ancestors, with this frame's values taking precedence. Used when a run's
// root context is checkpointed.
func (c *Context) FlattenedSnapshot() map[string]interface{} {
	out := map[string]interface{}{}
	var chain []*Context
	for f := c; f != nil; f = f.parent {
		chain = append(chain, f)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].Snapshot() {
			out[k] = v
		}
	}
	return out
}

// ResumeDataFor returns the resume payload recorded for a step, if any.
func (c *Context) ResumeDataFor(stepName string) (map[string]interface{}, bool) {
	v, ok := c.resumeData[stepName]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}

// AppendArtifact records an artifact produced during this frame's scope.
func (c *Context) AppendArtifact(ref state.ArtifactRef) {
	c.mu.Lock()
	c.artifacts = append(c.artifacts, ref)
	c.mu.Unlock()
}

// Artifacts returns every artifact recorded directly on this frame (not
// ancestors).
func (c *Context) Artifacts() []state.ArtifactRef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]state.ArtifactRef(nil), c.artifacts...)
}

// SetLoopScope records which iteration this frame represents.
func (c *Context) SetLoopScope(stepName string, index int, item interface{}, hasItem bool) {
	c.mu.Lock()
	c.loop = &LoopScope{StepName: stepName, Index: index, Item: item, HasItem: hasItem}
	c.mu.Unlock()
}

// GetLoopScope returns the loop binding for this frame, if any, checking
// ancestors so a nested step inside a loop body still sees it.
func (c *Context) GetLoopScope() (LoopScope, bool) {
	c.mu.RLock()
	l := c.loop
	c.mu.RUnlock()
	if l != nil {
		return *l, true
	}
	if c.parent != nil {
		return c.parent.GetLoopScope()
	}
	return LoopScope{}, false
}
