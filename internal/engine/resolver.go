package engine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flowforge/flowforge/internal/plugin"
	"github.com/flowforge/flowforge/internal/workflow"
)

// templateRef matches "{{ key }}" or "{{ key.sub }}" placeholders. Expansion
// is pure textual substitution against the context — never code execution,
// so this intentionally does not reach for text/template.
var templateRef = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Resolver builds the per-step input payload from context, upstream
// outputs, declared connections, and template expansion.
type Resolver struct{}

// Resolve implements InputResolver for one non-loop step invocation. ctx is
// the step's own scoped frame (already spawned by the caller); source
// outputs are read via ctx.Get(stepName) because OutputHandler merges each
// step's output into the context under its own namespace.
func (Resolver) Resolve(step workflow.StepConfig, ctx *Context) (plugin.Input, error) {
	fields := map[string]struct{}{}
	for k := range step.Config {
		fields[k] = struct{}{}
	}
	for k := range step.Connections {
		fields[k] = struct{}{}
	}

	input := plugin.Input{}
	for field := range fields {
		value, err := resolveField(step, field, ctx)
		if err != nil {
			return nil, err
		}
		input[field] = value
	}
	return input, nil
}

func resolveField(step workflow.StepConfig, field string, ctx *Context) (interface{}, error) {
	if source, ok := step.Connections[field]; ok {
		return resolveConnection(step.Name, field, source, ctx)
	}
	if v, ok := ctx.Get(field); ok {
		return v, nil
	}
	raw, ok := step.Config[field]
	if !ok {
		return nil, nil
	}
	return expandValue(raw, step, ctx), nil
}

// resolveConnection reads "source_step.source_field" by looking up the
// source step's recorded output (ctx[source_step]) and extracting
// source_field from it. If the source output is not a mapping, it is
// passed through directly regardless of the requested field name.
func resolveConnection(stepName, field, source string, ctx *Context) (interface{}, error) {
	sourceStep, sourceField, ok := strings.Cut(source, ".")
	if !ok {
		// Fallback dotted lookup: treat the whole string as a context key.
		if v, ok := ctx.Get(source); ok {
			return v, nil
		}
		return nil, plugin.NewInputError(stepName, field, fmt.Sprintf("connection %q is not in step.field form and no context key matches", source), nil)
	}

	output, ok := ctx.Get(sourceStep)
	if !ok {
		return nil, plugin.NewInputError(stepName, field, fmt.Sprintf("connection source step %q has not produced output yet", sourceStep), nil)
	}

	m, ok := output.(map[string]interface{})
	if !ok {
		return output, nil
	}
	v, ok := m[sourceField]
	if !ok {
		return nil, plugin.NewInputError(stepName, field, fmt.Sprintf("connection source %q has no field %q", sourceStep, sourceField), nil)
	}
	return v, nil
}

// expandValue walks a config value, substituting template references in
// every string it finds (recursing into maps and slices), never executing
// code. Unresolved references yield an empty string, never a crash.
func expandValue(raw interface{}, step workflow.StepConfig, ctx *Context) interface{} {
	switch v := raw.(type) {
	case string:
		return expandString(v, step, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			out[k] = expandValue(val, step, ctx)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = expandValue(val, step, ctx)
		}
		return out
	default:
		return v
	}
}

func expandString(s string, step workflow.StepConfig, ctx *Context) string {
	return templateRef.ReplaceAllStringFunc(s, func(match string) string {
		key := templateRef.FindStringSubmatch(match)[1]
		val, ok := lookupTemplateKey(key, step, ctx)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%v", val)
	})
}

func lookupTemplateKey(key string, step workflow.StepConfig, ctx *Context) (interface{}, bool) {
	switch key {
	case "task_id":
		return ctx.TaskID(), true
	case "step_name":
		return step.Name, true
	}
	if scope, ok := ctx.GetLoopScope(); ok {
		switch key {
		case "index":
			return scope.Index, true
		case "item":
			if scope.HasItem {
				return scope.Item, true
			}
		}
	}
	if v, ok := ctx.Get(key); ok {
		return v, true
	}
	if strings.Contains(key, ".") {
		parent, field, _ := strings.Cut(key, ".")
		if parentVal, ok := ctx.Get(parent); ok {
			if m, ok := parentVal.(map[string]interface{}); ok {
				if v, ok := m[field]; ok {
					return v, true
				}
			}
		}
	}
	return nil, false
}

// RequireFields fails with InputError for the first name in required whose
// key is absent from the resolved input. It checks key presence only: a key
// present with a nil value passes. Neither the invoker nor the scheduler
// calls it, and PluginMetadata declares no required fields.
func RequireFields(stepName string, input plugin.Input, required []string) error {
	for _, name := range required {
		if _, ok := input[name]; !ok {
			return plugin.NewInputError(stepName, name, "required field missing", nil)
		}
	}
	return nil
}
