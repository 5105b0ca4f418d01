package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Catalog resolves plugin references by name and validates the dependency
// declarations plugins make on one another. This is the concrete shape of
// the "plugin catalog" the core DAGValidator and PluginInvoker treat as an
// external collaborator.
type Catalog struct {
	mu       sync.RWMutex
	plugins  map[string]Plugin
	metadata map[string]PluginMetadata
	graph    *DependencyGraph
	disabled map[string]bool
	config   *CatalogConfig
	onWarn   func(string)
}

// NewCatalog builds an empty catalog. A nil config falls back to
// environment-aware defaults (see DefaultCatalogConfig). onWarn receives
// human-readable messages for graceful-policy degradations; pass nil to
// discard them.
func NewCatalog(config *CatalogConfig, onWarn func(string)) *Catalog {
	if config == nil {
		config = DefaultCatalogConfig()
	}
	if onWarn == nil {
		onWarn = func(string) {}
	}
	return &Catalog{
		plugins:  make(map[string]Plugin),
		metadata: make(map[string]PluginMetadata),
		graph:    NewDependencyGraph(),
		disabled: make(map[string]bool),
		config:   config,
		onWarn:   onWarn,
	}
}

// Register adds a plugin under its metadata name.
func (c *Catalog) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register a nil plugin")
	}
	meta := p.Metadata()
	if meta.APIVersion == "" {
		meta.APIVersion = "1.x"
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.plugins[meta.Name]; exists {
		return fmt.Errorf("plugin %q already registered", meta.Name)
	}

	c.plugins[meta.Name] = p
	c.metadata[meta.Name] = meta
	c.graph.AddNode(meta.Name)
	for _, dep := range meta.Dependencies {
		c.graph.AddEdge(meta.Name, dep.Name)
	}
	delete(c.disabled, meta.Name)
	return nil
}

// Validate checks every declared dependency resolves, every version
// constraint is satisfied, and the dependency graph is acyclic. Under
// PolicyGraceful, offending plugins are disabled and a warning is emitted
// instead of failing catalog construction; under PolicyStrict the first
// problem aborts.
func (c *Catalog) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disabled = make(map[string]bool)
	var issues []error
	conflicts := make(map[string]*ErrVersionConflict)

	for name, meta := range c.metadata {
		for _, dep := range meta.Dependencies {
			depMeta, exists := c.metadata[dep.Name]
			if !exists {
				err := ErrMissingDependency{Plugin: name, Dependency: dep.Name}
				if c.config.DependencyPolicy == PolicyStrict {
					return err
				}
				c.disabled[name] = true
				issues = append(issues, err)
				continue
			}
			if dep.VersionConstraint != nil && !dep.VersionConstraint.Satisfies(depMeta.Version) {
				conflict, ok := conflicts[dep.Name]
				if !ok {
					conflict = &ErrVersionConflict{Plugin: dep.Name, ActualVersion: depMeta.Version}
					conflicts[dep.Name] = conflict
				}
				conflict.RequiredBy = name
				conflict.Constraint = dep.VersionConstraint.String()
				if c.config.DependencyPolicy == PolicyStrict {
					return *conflict
				}
				c.disabled[name] = true
			}
		}
	}
	for _, conflict := range conflicts {
		issues = append(issues, *conflict)
	}

	cycle, _ := c.graph.DetectCycles()
	if len(cycle) > 0 {
		err := ErrCircularDependency{Cycle: cycle}
		if c.config.DependencyPolicy == PolicyStrict {
			return err
		}
		for _, name := range cycle {
			c.disabled[name] = true
		}
		issues = append(issues, err)
	}

	for _, issue := range issues {
		c.onWarn(issue.Error())
	}
	return nil
}

// InitializePlugins calls Init on every enabled plugin implementing
// Initializer, in dependency order so a plugin's dependencies are already
// initialized when it runs.
func (c *Catalog) InitializePlugins() error {
	c.mu.RLock()
	order, err := c.graph.TopologicalSort()
	if err != nil {
		c.mu.RUnlock()
		return err
	}
	type target struct {
		name string
		p    Plugin
	}
	var targets []target
	for _, name := range order {
		if c.disabled[name] {
			continue
		}
		if p, ok := c.plugins[name]; ok {
			targets = append(targets, target{name: name, p: p})
		}
	}
	c.mu.RUnlock()

	for _, t := range targets {
		if initializer, ok := t.p.(Initializer); ok {
			if err := initializer.Init(c); err != nil {
				return fmt.Errorf("init plugin %q: %w", t.name, err)
			}
		}
	}
	return nil
}

// Get resolves a plugin reference, failing with ErrPluginNotFound for
// unknown or disabled names.
func (c *Catalog) Get(name string) (Plugin, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.plugins[name]
	if !ok || c.disabled[name] {
		return nil, ErrPluginNotFound{Name: name}
	}
	return p, nil
}

// Has reports whether name resolves to an enabled plugin, used by the
// DAGValidator to check plugin references without invoking anything.
func (c *Catalog) Has(name string) bool {
	_, err := c.Get(name)
	return err == nil
}

// List returns every enabled plugin name, sorted.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.plugins))
	for name := range c.plugins {
		if !c.disabled[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
