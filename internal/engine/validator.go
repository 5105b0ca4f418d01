package engine

import (
	"fmt"
	"strings"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow"
	"github.com/flowforge/flowforge/internal/workflow/state"
)

const nestedPipelinePrefix = "pipeline."

// Validator is the DAGValidator: static validation of a pipeline definition
// against a plugin catalog, producing the normalized dependency map the
// scheduler and DAGState use at run time.
type Validator struct {
	Catalog   *plugin.Catalog
	Pipelines PipelineRegistry // optional; when set, pipeline.<id> references must resolve too
}

// NewValidator constructs a Validator bound to a catalog.
func NewValidator(catalog *plugin.Catalog) *Validator {
	return &Validator{Catalog: catalog}
}

// Validate runs the checks of §4.1 in order and returns the normalized
// dependency map on success.
func (v *Validator) Validate(p workflow.PipelineDefinition) (map[string][]state.ParsedDependency, error) {
	if err := p.ValidateShape(); err != nil {
		return nil, err
	}

	steps := p.StepByName()

	if err := v.validatePluginReferences(p); err != nil {
		return nil, err
	}
	if err := v.validateDependencyReferences(p, steps); err != nil {
		return nil, err
	}
	if err := v.validateNoCycles(p); err != nil {
		return nil, err
	}
	if err := v.validateCriticalDependencyRule(p, steps); err != nil {
		return nil, err
	}

	parsed := make(map[string][]state.ParsedDependency, len(p.Steps))
	for _, step := range p.Steps {
		parsed[step.Name] = parseDependencies(step)
	}
	return parsed, nil
}

func parseDependencies(step workflow.StepConfig) []state.ParsedDependency {
	out := make([]state.ParsedDependency, 0, len(step.DependsOn))
	for _, d := range step.DependsOn {
		pd := state.ParsedDependency{StepName: d.Step, IsConditional: d.IsConditional()}
		if d.Predicate != nil {
			pd.Predicate = *d.Predicate
		}
		out = append(out, pd)
	}
	return out
}

func (v *Validator) validatePluginReferences(p workflow.PipelineDefinition) error {
	for _, step := range p.Steps {
		if step.IsLoop() {
			for _, body := range step.LoopConfig.Body {
				if err := v.checkPluginResolves(body.Plugin, body.Name); err != nil {
					return err
				}
			}
			if len(step.LoopConfig.Body) == 0 {
				if err := v.checkPluginResolves(step.Plugin, step.Name); err != nil {
					return err
				}
			}
			continue
		}
		if err := v.checkPluginResolves(step.Plugin, step.Name); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) checkPluginResolves(ref, stepName string) error {
	if nestedID, ok := strings.CutPrefix(ref, nestedPipelinePrefix); ok {
		if v.Pipelines == nil {
			return nil
		}
		if _, ok := v.Pipelines.Get(nestedID); !ok {
			return workflow.NewValidationError("steps[].plugin", fmt.Sprintf("step %q references unknown pipeline %q", stepName, nestedID), nil)
		}
		return nil
	}
	if v.Catalog == nil || !v.Catalog.Has(ref) {
		return workflow.NewValidationError("steps[].plugin", fmt.Sprintf("step %q references unknown plugin %q", stepName, ref), nil)
	}
	return nil
}

func (v *Validator) validateDependencyReferences(p workflow.PipelineDefinition, steps map[string]workflow.StepConfig) error {
	for _, step := range p.Steps {
		for _, dep := range step.DependsOn {
			if dep.Step == step.Name {
				return workflow.NewValidationError("steps[].depends_on", fmt.Sprintf("step %q cannot depend on itself", step.Name), nil)
			}
			if _, ok := steps[dep.Step]; !ok {
				return workflow.NewValidationError("steps[].depends_on", fmt.Sprintf("step %q depends on unknown step %q", step.Name, dep.Step), nil)
			}
		}
	}
	return nil
}

// validateNoCycles runs a DFS with an explicit recursion stack so the
// first back-edge found names the two steps involved in the cycle.
func (v *Validator) validateNoCycles(p workflow.PipelineDefinition) error {
	steps := p.StepByName()
	visited := make(map[string]bool, len(steps))
	onStack := make(map[string]bool, len(steps))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)

		for _, dep := range steps[name].DependsOn {
			if !visited[dep.Step] {
				if err := visit(dep.Step); err != nil {
					return err
				}
			} else if onStack[dep.Step] {
				idx := len(path) - 1
				for idx >= 0 && path[idx] != dep.Step {
					idx--
				}
				cycle := append([]string(nil), path[idx:]...)
				return workflow.NewValidationError("steps[].depends_on",
					fmt.Sprintf("circular dependency detected: %s", strings.Join(append(cycle, dep.Step), " -> ")), nil)
			}
		}

		onStack[name] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, step := range p.Steps {
		if !visited[step.Name] {
			if err := visit(step.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateCriticalDependencyRule enforces that a fail_on_error step only
// depends on other fail_on_error steps — otherwise a non-critical
// dependency could be SKIPPED or silently absent while a critical step
// still expects to run, an inconsistency the spec disallows outright.
func (v *Validator) validateCriticalDependencyRule(p workflow.PipelineDefinition, steps map[string]workflow.StepConfig) error {
	for _, step := range p.Steps {
		if !step.FailOnError {
			continue
		}
		for _, dep := range step.DependsOn {
			if !steps[dep.Step].FailOnError {
				return workflow.NewValidationError("steps[].fail_on_error",
					fmt.Sprintf("critical step %q depends on non-critical step %q", step.Name, dep.Step), nil)
			}
		}
	}
	return nil
}
