package builtin

import (
	"bytes"
	"context"
	"text/template"

	"github.com/flowforge/flowforge/internal/plugin"
)

// TemplatePlugin renders a Go text/template against the step's "vars" map
// and returns the rendered text as output, optionally saving it as an
// artifact when "filename" is set. Grounded on internal/plugins/template's
// variable-substitution behavior, minus its separate Evaluate/Apply phases.
type TemplatePlugin struct{}

// NewTemplate builds the template plugin.
func NewTemplate() *TemplatePlugin { return &TemplatePlugin{} }

var _ plugin.Plugin = (*TemplatePlugin)(nil)

func (p *TemplatePlugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:        "template",
		Version:     "1.0.0",
		APIVersion:  "1.x",
		Description: "Renders a Go text/template against step variables.",
	}
}

func (p *TemplatePlugin) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	body := inputString(call.Input, "template")
	if body == "" {
		return plugin.Result{}, plugin.NewInputError(call.StepName, "template", "template plugin requires a non-empty \"template\" string", nil)
	}

	tmpl, err := template.New(call.StepName).Parse(body)
	if err != nil {
		return plugin.Result{}, plugin.NewInputError(call.StepName, "template", "template failed to parse", err)
	}

	vars, _ := call.Input["vars"].(map[string]interface{})
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return plugin.Result{}, plugin.NewPluginError(call.StepName, "template", "template execution failed", err)
	}
	rendered := buf.String()

	result := plugin.Result{Output: plugin.Output{"rendered": rendered}}
	if filename := inputString(call.Input, "filename"); filename != "" {
		result.Artifacts = []plugin.ArtifactSave{{
			Filename:    filename,
			Content:     buf.Bytes(),
			ContentType: "text",
		}}
	}
	return result, nil
}
