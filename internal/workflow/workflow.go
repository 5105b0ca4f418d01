// Package workflow holds the declarative data model read from a pipeline
// definition: parameters, steps, their dependencies, and loop bodies. Types
// here are read-only once a run starts.
package workflow

import (
	"fmt"
	"regexp"
)

var stepNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ParamType enumerates the primitive types a pipeline parameter may declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
)

func (t ParamType) valid() bool {
	switch t {
	case ParamString, ParamInteger, ParamBoolean:
		return true
	default:
		return false
	}
}

// Param declares a typed pipeline input.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Dependency is an entry in a step's depends_on list. A bare name has
// Predicate == nil; a conditional dependency carries when_output_equals.
type Dependency struct {
	Step      string
	Predicate *string // when_output_equals, nil for unconditional
}

// IsConditional reports whether this dependency gates on the source step's
// output rather than merely its completion.
func (d Dependency) IsConditional() bool { return d.Predicate != nil }

// StepConfig is the declarative unit of a pipeline: one plugin invocation
// or one loop.
type StepConfig struct {
	Name        string
	Plugin      string // catalog reference, or "pipeline.<id>" for nested composition
	DependsOn   []Dependency
	FailOnError bool // default true; set explicitly during decode
	IsFinally   bool
	Config      map[string]interface{}
	Connections map[string]string // target_field -> "source_step.source_field"
	LoopConfig  *LoopConfig
}

// IsLoop reports whether this step expands into iteration-scoped children.
func (s StepConfig) IsLoop() bool { return s.LoopConfig != nil }

// DependencyNames returns the bare step names this step depends on,
// ignoring predicates.
func (s StepConfig) DependencyNames() []string {
	names := make([]string, len(s.DependsOn))
	for i, d := range s.DependsOn {
		names[i] = d.Step
	}
	return names
}

// LoopConfig describes iteration over a synthetic or explicit inner DAG.
type LoopConfig struct {
	Body          []StepConfig
	Collection    string // context key yielding an ordered sequence
	Count         *int   // non-negative; outranked by Collection, outranks Condition (see Driver)
	Condition     string // context key gating continuation while truthy
	ItemName      string
	IndexName     string
	ResultName    string
	DelayMS       int
	FailFast      bool
	MaxIterations int // safety cap for condition-driven loops
}

// Driver identifies which of the three iteration strategies a LoopConfig
// selects, in the precedence order collection > count > condition.
type Driver int

const (
	DriverCollection Driver = iota
	DriverCount
	DriverCondition
)

func (l LoopConfig) Driver() Driver {
	switch {
	case l.Collection != "":
		return DriverCollection
	case l.Count != nil:
		return DriverCount
	default:
		return DriverCondition
	}
}

// PipelineDefinition is a named, parameterized DAG of steps.
type PipelineDefinition struct {
	ID          string
	Name        string
	Description string
	Params      []Param
	Steps       []StepConfig
}

// StepByName indexes steps for O(1) lookup.
func (p PipelineDefinition) StepByName() map[string]StepConfig {
	m := make(map[string]StepConfig, len(p.Steps))
	for _, s := range p.Steps {
		m[s.Name] = s
	}
	return m
}

// ValidateShape performs the structural checks that do not require the
// plugin catalog: non-empty identifiers, valid step-name characters, unique
// names, and known parameter types. Dependency resolution, cycle detection,
// plugin resolution, and the critical-dependency rule are the job of the
// DAGValidator in internal/engine, which needs the catalog to run.
func (p PipelineDefinition) ValidateShape() error {
	if p.Name == "" {
		return NewValidationError("name", "pipeline name is required", nil)
	}
	if len(p.Steps) == 0 {
		return NewValidationError("steps", "pipeline requires at least one step", nil)
	}

	seen := make(map[string]struct{}, len(p.Steps))
	for _, step := range p.Steps {
		if err := step.validateShape(); err != nil {
			return err
		}
		if _, ok := seen[step.Name]; ok {
			return NewValidationError("steps", fmt.Sprintf("duplicate step name %q", step.Name), nil)
		}
		seen[step.Name] = struct{}{}
	}

	for _, param := range p.Params {
		if param.Name == "" {
			return NewValidationError("params", "parameter name is required", nil)
		}
		if !param.Type.valid() {
			return NewValidationError("params", fmt.Sprintf("param %q has unknown type %q", param.Name, param.Type), nil)
		}
	}

	return nil
}

func (s StepConfig) validateShape() error {
	if s.Name == "" {
		return NewValidationError("steps[].name", "step name is required", nil)
	}
	if !stepNamePattern.MatchString(s.Name) {
		return NewValidationError("steps[].name", fmt.Sprintf("step name %q must match ^[a-zA-Z0-9_-]+$", s.Name), nil)
	}
	if s.Plugin == "" {
		return NewValidationError("steps[].plugin", fmt.Sprintf("step %q is missing a plugin reference", s.Name), nil)
	}
	if s.LoopConfig != nil {
		if err := s.LoopConfig.validateShape(s.Name); err != nil {
			return err
		}
	}
	return nil
}

func (l LoopConfig) validateShape(stepName string) error {
	set := 0
	if l.Collection != "" {
		set++
	}
	if l.Count != nil {
		set++
	}
	if l.Condition != "" {
		set++
	}
	if set == 0 {
		return NewValidationError("loop_config", fmt.Sprintf("loop %q must set one of collection, count, or condition", stepName), nil)
	}
	if l.Count != nil && *l.Count < 0 {
		return NewValidationError("loop_config.count", fmt.Sprintf("loop %q count must be non-negative", stepName), nil)
	}
	for _, body := range l.Body {
		if err := body.validateShape(); err != nil {
			return err
		}
	}
	return nil
}
