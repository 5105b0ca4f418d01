package main

import (
	"fmt"
	"os"

	"github.com/flowforge/flowforge/internal/artifact"
	"github.com/flowforge/flowforge/internal/checkpoint"
	"github.com/flowforge/flowforge/internal/config"
	"github.com/flowforge/flowforge/internal/engine"
	"github.com/flowforge/flowforge/internal/logging"
	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/plugin/builtin"
)

// appContext bundles the long-lived services every flowctl subcommand
// needs: the plugin catalog, the pipeline registry, the checkpoint and
// artifact stores, and a component-scoped logger plus audit trail shared
// across a single invocation.
type appContext struct {
	dataDir    string
	maxWorkers int64
	logger     *logging.Logger
	audit      *logging.Audit
	catalog    *plugin.Catalog
	registry   *config.Registry
	checkpoint *checkpoint.Manager
	artifacts  *artifact.Store
}

func newAppContext(dataDir, logLevel string, maxWorkers int64) (*appContext, error) {
	for _, dir := range []string{dataDir, pipelinesDir(dataDir), checkpointsDir(dataDir), artifactsDir(dataDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	logger, err := logging.New(logging.Options{Level: logLevel, Component: "flowctl"})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	audit, err := logging.NewAudit(auditDir(dataDir))
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}

	descriptor, err := loadCatalogDescriptor(catalogPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("load catalog descriptor: %w", err)
	}

	catalog := plugin.NewCatalog(descriptor.ToCatalogConfig(), func(msg string) {
		logger.Warn(nil, msg)
	})
	if err := builtin.RegisterAll(catalog, descriptor.IsEnabled); err != nil {
		return nil, fmt.Errorf("register builtin plugins: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("validate plugin catalog: %w", err)
	}
	if err := catalog.InitializePlugins(); err != nil {
		return nil, fmt.Errorf("initialize plugins: %w", err)
	}

	registry := config.NewRegistry()
	if err := registry.LoadDir(pipelinesDir(dataDir)); err != nil {
		return nil, fmt.Errorf("load pipeline definitions: %w", err)
	}

	cpManager, err := checkpoint.NewManager(checkpointsDir(dataDir))
	if err != nil {
		return nil, fmt.Errorf("build checkpoint manager: %w", err)
	}
	cpManager.SetAudit(audit)

	artifacts := artifact.NewStore(artifactsDir(dataDir))
	artifacts.SetAudit(audit)

	return &appContext{
		dataDir:    dataDir,
		maxWorkers: maxWorkers,
		logger:     logger,
		audit:      audit,
		catalog:    catalog,
		registry:   registry,
		checkpoint: cpManager,
		artifacts:  artifacts,
	}, nil
}

// loadCatalogDescriptor tolerates a missing catalog.toml: a fresh
// ~/.flowforge has none yet, and every plugin defaults to enabled.
func loadCatalogDescriptor(path string) (config.CatalogDescriptor, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.CatalogDescriptor{}, nil
	}
	return config.LoadCatalogDescriptor(path)
}

// newScheduler builds a Scheduler wired to this appContext's catalog,
// registry, and artifact store, with the given progress/summary sinks.
func (a *appContext) newScheduler(progress engine.ProgressFunc, summary engine.SummaryFunc) *engine.Scheduler {
	sched := engine.NewScheduler(a.catalog, a.maxWorkers, a.artifacts)
	sched.Pipelines = a.registry
	sched.Checkpoint = a.checkpoint
	if progress != nil {
		sched.Progress = progress
	}
	if summary != nil {
		sched.Summary = summary
	}
	sched.ArtifactsDir = artifactsDir(a.dataDir)
	return sched
}

func (a *appContext) close() {
	if a.audit != nil {
		a.audit.Close()
	}
}
