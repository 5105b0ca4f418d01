package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/internal/checkpoint"
	"github.com/flowforge/flowforge/internal/engine"
)

type resumeOptions struct {
	file      string
	overrides []string
}

func newResumeCmd(root *rootFlags) *cobra.Command {
	opts := &resumeOptions{}

	cmd := &cobra.Command{
		Use:   "resume <checkpoint-id>",
		Short: "Resume a suspended run from its checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd, root, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Load the pipeline definition from this YAML file instead of resolving the checkpoint's pipeline ID from the registry")
	cmd.Flags().StringArrayVar(&opts.overrides, "override", nil, "Human input for a suspended step, as step.field=value, repeatable")

	return cmd
}

func runResume(cmd *cobra.Command, root *rootFlags, checkpointID string, opts *resumeOptions) error {
	dataDir, err := root.resolveDataDir()
	if err != nil {
		return newCommandError("resume", "resolving data directory", err, "Set --data-dir explicitly or ensure $HOME is set.")
	}

	app, err := newAppContext(dataDir, root.logLevel, root.maxWorkers)
	if err != nil {
		return newCommandError("resume", "initializing flowctl", err, "Check permissions on the data directory.")
	}
	defer app.close()

	release, err := app.checkpoint.AcquireResumeLock(checkpointID)
	if err != nil {
		return newCommandError("resume", "acquiring resume lock", err, "Another resume of this checkpoint may already be running.")
	}
	defer release()

	cp, err := app.checkpoint.Load(checkpointID)
	if err != nil {
		return newCommandError("resume", "loading checkpoint", err, "Run `flowctl list` to see the available checkpoint ids.")
	}

	def, err := resolvePipeline(app, cp.PipelineID, opts.file)
	if err != nil {
		return newCommandError("resume", "resolving pipeline definition", err, "Pass --file, or register the pipeline under its original ID first.")
	}

	overrides, err := parseOverrides(opts.overrides)
	if err != nil {
		return newCommandError("resume", "parsing --override values", err, "Use step.field=value, e.g. --override approve.decision=yes.")
	}

	dagState, restoredCtx := checkpoint.Restore(cp, overrides)

	deps, err := engine.NewValidator(app.catalog).Validate(def)
	if err != nil {
		return newCommandError("resume", "validating pipeline", err, "Fix the reported step, dependency, or plugin reference.")
	}

	resumeData := make(map[string]interface{}, len(overrides))
	for step, fields := range overrides {
		resumeData[step] = fields
	}
	runCtx := engine.New(cp.TaskID, cp.PipelineID, resumeData)
	runCtx.Update(restoredCtx)

	sched := app.newScheduler(func(p engine.StepProgress) {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", p.Status, p.StepName)
	}, nil)

	result := sched.Run(context.Background(), def, deps, dagState, runCtx)
	app.logger.Info(context.Background(), "resume finished", "checkpoint_id", checkpointID, "task_id", cp.TaskID, "error", errString(result))
	return translateRunErr(result)
}

// parseOverrides builds the per-step override map checkpoint.Restore needs
// from repeated "step.field=value" flags.
func parseOverrides(pairs []string) (map[string]map[string]interface{}, error) {
	out := map[string]map[string]interface{}{}
	for _, pair := range pairs {
		kv, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --override %q, expected step.field=value", pair)
		}
		step, field, ok := strings.Cut(kv, ".")
		if !ok {
			return nil, fmt.Errorf("invalid --override %q, expected step.field=value", pair)
		}
		if out[step] == nil {
			out[step] = map[string]interface{}{}
		}
		out[step][field] = value
	}
	return out, nil
}
