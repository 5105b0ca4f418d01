// Package builtin provides the reference plugin set every flowforge
// deployment can register: a shell command runner, a Go-template renderer,
// and a git-repository clone/pull plugin. Each is grounded in the teacher's
// internal/plugins/{command,template,repo} packages, rewritten against this
// module's plugin.Plugin contract instead of the teacher's two-phase
// Evaluate/Apply install-step contract — there is no dry-run split here
// because the engine's DAGExecutor has no verify phase to feed.
package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/flowforge/flowforge/internal/plugin"
)

// CommandPlugin runs a shell command, collecting combined stdout/stderr in a
// buffer and returning it as its output once the command exits. Grounded on
// internal/plugins/command's shell-selection and output-capture pattern,
// minus the separate Check/dry-run phase.
type CommandPlugin struct{}

// NewCommand builds the command plugin.
func NewCommand() *CommandPlugin { return &CommandPlugin{} }

var _ plugin.Plugin = (*CommandPlugin)(nil)

func (p *CommandPlugin) Metadata() plugin.PluginMetadata {
	return plugin.PluginMetadata{
		Name:        "command",
		Version:     "1.0.0",
		APIVersion:  "1.x",
		Description: "Executes a shell command with optional working directory and environment overrides.",
	}
}

func (p *CommandPlugin) Invoke(ctx context.Context, call plugin.Call) (plugin.Result, error) {
	raw, ok := call.Input["cmd"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return plugin.Result{}, plugin.NewInputError(call.StepName, "cmd", "command plugin requires a non-empty \"cmd\" string", nil)
	}

	shell, shellArgs := shellFor(inputString(call.Input, "shell"))
	args := append(append([]string{}, shellArgs...), raw)

	cmd := exec.CommandContext(ctx, shell, args...)
	if workdir := inputString(call.Input, "workdir"); workdir != "" {
		cmd.Dir = workdir
	}
	cmd.Env = os.Environ()
	if env, ok := call.Input["env"].(map[string]interface{}); ok {
		cmd.Env = append(cmd.Env, envPairs(env)...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return plugin.Result{}, plugin.NewPluginError(call.StepName, "command", fmt.Sprintf("command failed: %s", out.String()), err)
	}

	return plugin.Result{Output: plugin.Output{"stdout": out.String()}}, nil
}

func shellFor(name string) (string, []string) {
	if name != "" {
		return name, []string{"-c"}
	}
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}
	}
	return "sh", []string{"-c"}
}

func envPairs(m map[string]interface{}) []string {
	pairs := make([]string, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return pairs
}

func inputString(input plugin.Input, key string) string {
	s, _ := input[key].(string)
	return s
}
