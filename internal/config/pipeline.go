// Package config loads pipeline definitions and the plugin catalog
// descriptor from disk. It replaces the teacher's internal/config (a
// discriminated-union install-step YAML parser with its own cycle
// detector and validation-rule set) with a loader for this module's
// DAG/plugin domain, built on the same libraries: gopkg.in/yaml.v3 for
// the documents themselves and github.com/go-playground/validator/v10
// for struct-tag validation, with BurntSushi/toml for the plugin
// catalog descriptor (see catalog.go).
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/flowforge/flowforge/internal/workflow"
)

// pipelineDoc is the YAML document shape for a pipeline definition file.
// It is decoded into workflow.PipelineDefinition by ToDefinition once
// validated, rather than letting workflow.PipelineDefinition itself carry
// yaml/validate struct tags — the declarative model stays free of its
// serialization format.
type pipelineDoc struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name" validate:"required"`
	Description string      `yaml:"description"`
	Params      []paramDoc  `yaml:"params"`
	Steps       []stepDoc   `yaml:"steps" validate:"required,min=1,dive"`
}

type paramDoc struct {
	Name        string `yaml:"name" validate:"required"`
	Type        string `yaml:"type" validate:"required,oneof=string integer boolean"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// stepDoc mirrors workflow.StepConfig. FailOnError defaults to true
// (matching workflow.StepConfig's documented default), so it is decoded as
// a pointer and resolved to true when the key is absent.
type stepDoc struct {
	Name        string            `yaml:"name" validate:"required"`
	Plugin      string            `yaml:"plugin" validate:"required"`
	DependsOn   []dependencyDoc   `yaml:"depends_on"`
	FailOnError *bool             `yaml:"fail_on_error"`
	Finally     bool              `yaml:"finally"`
	Config      map[string]interface{} `yaml:"config"`
	Connections map[string]string `yaml:"connections"`
	Loop        *loopDoc          `yaml:"loop_config"`
}

// dependencyDoc accepts either a bare step-name string or a mapping with
// an optional when_output_equals predicate, matching the "depends_on" list
// shape the spec allows.
type dependencyDoc struct {
	Step             string
	WhenOutputEquals *string
}

func (d *dependencyDoc) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&d.Step)
	}
	var aux struct {
		Step             string  `yaml:"step" validate:"required"`
		WhenOutputEquals *string `yaml:"when_output_equals"`
	}
	if err := value.Decode(&aux); err != nil {
		return fmt.Errorf("depends_on entry: %w", err)
	}
	d.Step = aux.Step
	d.WhenOutputEquals = aux.WhenOutputEquals
	return nil
}

type loopDoc struct {
	Body          []stepDoc `yaml:"body"`
	Collection    string    `yaml:"collection"`
	Count         *int      `yaml:"count"`
	Condition     string    `yaml:"condition"`
	ItemName      string    `yaml:"item_name"`
	IndexName     string    `yaml:"index_name"`
	ResultName    string    `yaml:"result_name"`
	DelayMS       int       `yaml:"delay_ms"`
	FailFast      bool      `yaml:"fail_fast"`
	MaxIterations int       `yaml:"max_iterations"`
}

func (s stepDoc) toStepConfig() workflow.StepConfig {
	failOnError := true
	if s.FailOnError != nil {
		failOnError = *s.FailOnError
	}

	deps := make([]workflow.Dependency, len(s.DependsOn))
	for i, d := range s.DependsOn {
		deps[i] = workflow.Dependency{Step: d.Step, Predicate: d.WhenOutputEquals}
	}

	cfg := workflow.StepConfig{
		Name:        s.Name,
		Plugin:      s.Plugin,
		DependsOn:   deps,
		FailOnError: failOnError,
		IsFinally:   s.Finally,
		Config:      s.Config,
		Connections: s.Connections,
	}
	if s.Loop != nil {
		cfg.LoopConfig = s.Loop.toLoopConfig()
	}
	return cfg
}

func (l loopDoc) toLoopConfig() *workflow.LoopConfig {
	body := make([]workflow.StepConfig, len(l.Body))
	for i, s := range l.Body {
		body[i] = s.toStepConfig()
	}
	return &workflow.LoopConfig{
		Body:          body,
		Collection:    l.Collection,
		Count:         l.Count,
		Condition:     l.Condition,
		ItemName:      l.ItemName,
		IndexName:     l.IndexName,
		ResultName:    l.ResultName,
		DelayMS:       l.DelayMS,
		FailFast:      l.FailFast,
		MaxIterations: l.MaxIterations,
	}
}

func paramType(s string) workflow.ParamType {
	switch s {
	case "integer":
		return workflow.ParamInteger
	case "boolean":
		return workflow.ParamBoolean
	default:
		return workflow.ParamString
	}
}

func (d pipelineDoc) toDefinition() workflow.PipelineDefinition {
	params := make([]workflow.Param, len(d.Params))
	for i, p := range d.Params {
		params[i] = workflow.Param{
			Name:        p.Name,
			Type:        paramType(p.Type),
			Required:    p.Required,
			Description: p.Description,
		}
	}
	steps := make([]workflow.StepConfig, len(d.Steps))
	for i, s := range d.Steps {
		steps[i] = s.toStepConfig()
	}
	return workflow.PipelineDefinition{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Params:      params,
		Steps:       steps,
	}
}

// ParsePipeline decodes and validates one pipeline YAML document. It runs
// go-playground/validator/v10 struct-tag validation first (catching
// missing required fields and bad enum values) and workflow's own
// ValidateShape second (catching duplicate names, bad identifiers, and
// malformed loop drivers) — together these are the loader-time half of the
// two validation passes documented in SPEC_FULL.md; the catalog-aware half
// runs later in internal/engine.Validator.
func ParsePipeline(raw []byte) (workflow.PipelineDefinition, error) {
	var doc pipelineDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return workflow.PipelineDefinition{}, fmt.Errorf("config: parse pipeline yaml: %w", err)
	}
	if err := structValidator.Struct(doc); err != nil {
		return workflow.PipelineDefinition{}, workflow.NewValidationError("", err.Error(), err)
	}
	def := doc.toDefinition()
	if err := def.ValidateShape(); err != nil {
		return workflow.PipelineDefinition{}, err
	}
	return def, nil
}
