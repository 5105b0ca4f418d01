package engine

import (
	"context"
	"testing"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow"
	"github.com/stretchr/testify/require"
)

type echoPlugin struct{}

func (echoPlugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{Name: "echo", Version: "1.0.0"}
}

func (echoPlugin) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	return plugin.Result{Output: plugin.Output{"out": call.Input["msg"]}}, nil
}

func testCatalog(t *testing.T) *plugin.Catalog {
	t.Helper()
	c := plugin.NewCatalog(&plugin.CatalogConfig{DependencyPolicy: plugin.PolicyStrict, AccessPolicy: plugin.AccessStrict}, nil)
	require.NoError(t, c.Register(echoPlugin{}))
	return c
}

func TestValidatorAcceptsLinearPipeline(t *testing.T) {
	t.Parallel()

	p := workflow.PipelineDefinition{
		Name: "linear",
		Steps: []workflow.StepConfig{
			{Name: "a", Plugin: "echo", FailOnError: true},
			{Name: "b", Plugin: "echo", FailOnError: true, DependsOn: []workflow.Dependency{{Step: "a"}}},
		},
	}
	deps, err := NewValidator(testCatalog(t)).Validate(p)
	require.NoError(t, err)
	require.Len(t, deps["b"], 1)
	require.Equal(t, "a", deps["b"][0].StepName)
}

func TestValidatorRejectsUnknownPlugin(t *testing.T) {
	t.Parallel()

	p := workflow.PipelineDefinition{
		Name:  "bad",
		Steps: []workflow.StepConfig{{Name: "a", Plugin: "nonexistent"}},
	}
	_, err := NewValidator(testCatalog(t)).Validate(p)
	require.Error(t, err)
}

func TestValidatorAllowsNestedPipelineReference(t *testing.T) {
	t.Parallel()

	p := workflow.PipelineDefinition{
		Name:  "composed",
		Steps: []workflow.StepConfig{{Name: "sub", Plugin: "pipeline.deploy"}},
	}
	_, err := NewValidator(testCatalog(t)).Validate(p)
	require.NoError(t, err)
}

func TestValidatorRejectsUnknownDependency(t *testing.T) {
	t.Parallel()

	p := workflow.PipelineDefinition{
		Name: "bad",
		Steps: []workflow.StepConfig{
			{Name: "a", Plugin: "echo", DependsOn: []workflow.Dependency{{Step: "ghost"}}},
		},
	}
	_, err := NewValidator(testCatalog(t)).Validate(p)
	require.Error(t, err)
}

func TestValidatorDetectsCycle(t *testing.T) {
	t.Parallel()

	p := workflow.PipelineDefinition{
		Name: "cyclic",
		Steps: []workflow.StepConfig{
			{Name: "a", Plugin: "echo", DependsOn: []workflow.Dependency{{Step: "b"}}},
			{Name: "b", Plugin: "echo", DependsOn: []workflow.Dependency{{Step: "a"}}},
		},
	}
	_, err := NewValidator(testCatalog(t)).Validate(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "circular dependency")
}

func TestValidatorEnforcesCriticalDependencyRule(t *testing.T) {
	t.Parallel()

	p := workflow.PipelineDefinition{
		Name: "mixed",
		Steps: []workflow.StepConfig{
			{Name: "a", Plugin: "echo", FailOnError: false},
			{Name: "b", Plugin: "echo", FailOnError: true, DependsOn: []workflow.Dependency{{Step: "a"}}},
		},
	}
	_, err := NewValidator(testCatalog(t)).Validate(p)
	require.Error(t, err)
}

func TestValidatorParsesConditionalDependencyPredicate(t *testing.T) {
	t.Parallel()

	ok := "ok"
	p := workflow.PipelineDefinition{
		Name: "conditional",
		Steps: []workflow.StepConfig{
			{Name: "a", Plugin: "echo", FailOnError: true},
			{Name: "b", Plugin: "echo", FailOnError: true, DependsOn: []workflow.Dependency{{Step: "a", Predicate: &ok}}},
		},
	}
	deps, err := NewValidator(testCatalog(t)).Validate(p)
	require.NoError(t, err)
	require.True(t, deps["b"][0].IsConditional)
	require.Equal(t, "ok", deps["b"][0].Predicate)
}
