package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/internal/config"
	"github.com/flowforge/flowforge/internal/dashboard"
	"github.com/flowforge/flowforge/internal/engine"
	"github.com/flowforge/flowforge/internal/workflow"
	"github.com/flowforge/flowforge/internal/workflow/state"
	"github.com/flowforge/flowforge/pkg/werrors"
)

type runOptions struct {
	file   string
	params []string
	watch  bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline-id|pipeline-file>",
		Short: "Run a pipeline to completion (or until it suspends)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, root, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.file, "file", "", "Load the pipeline definition from this YAML file instead of resolving an ID from the registry")
	cmd.Flags().StringArrayVar(&opts.params, "param", nil, "Initial context value as key=value, repeatable")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Launch the live terminal dashboard while the run executes")

	return cmd
}

func runRun(cmd *cobra.Command, root *rootFlags, ref string, opts *runOptions) error {
	dataDir, err := root.resolveDataDir()
	if err != nil {
		return newCommandError("run", "resolving data directory", err, "Set --data-dir explicitly or ensure $HOME is set.")
	}

	app, err := newAppContext(dataDir, root.logLevel, root.maxWorkers)
	if err != nil {
		return newCommandError("run", "initializing flowctl", err, "Check permissions on the data directory.")
	}
	defer app.close()

	def, err := resolvePipeline(app, ref, opts.file)
	if err != nil {
		return newCommandError("run", "resolving pipeline definition", err, "Pass --file to load directly from disk, or check the pipeline ID.")
	}

	deps, err := engine.NewValidator(app.catalog).Validate(def)
	if err != nil {
		return newCommandError("run", "validating pipeline", err, "Fix the reported step, dependency, or plugin reference.")
	}

	initial, err := parseParams(opts.params)
	if err != nil {
		return newCommandError("run", "parsing --param values", err, "Use key=value, e.g. --param env=staging.")
	}

	taskID := uuid.NewString()
	names := make([]string, len(def.Steps))
	for i, s := range def.Steps {
		names[i] = s.Name
	}
	dagState := state.New(names)
	runCtx := engine.New(taskID, def.ID, nil)
	for k, v := range initial {
		runCtx.Set(k, v)
	}

	ctx := context.Background()

	var result error
	if opts.watch {
		result = runWatched(ctx, app, def, deps, dagState, runCtx, taskID)
	} else {
		result = runPlain(cmd, ctx, app, def, deps, dagState, runCtx)
	}

	app.logger.Info(ctx, "run finished", "task_id", taskID, "pipeline_id", def.ID, "error", errString(result))
	return translateRunErr(result)
}

func runPlain(cmd *cobra.Command, ctx context.Context, app *appContext, def workflow.PipelineDefinition, deps map[string][]state.ParsedDependency, dagState *state.DAGState, runCtx *engine.Context) error {
	sched := app.newScheduler(func(p engine.StepProgress) {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", p.Status, p.StepName)
	}, nil)
	return sched.Run(ctx, def, deps, dagState, runCtx)
}

func runWatched(ctx context.Context, app *appContext, def workflow.PipelineDefinition, deps map[string][]state.ParsedDependency, dagState *state.DAGState, runCtx *engine.Context, taskID string) error {
	feed := dashboard.NewFeed()
	sched := app.newScheduler(feed.OnProgress, feed.OnSummary)

	model := dashboard.NewModel(feed, taskID)
	program := tea.NewProgram(model)

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- sched.Run(ctx, def, deps, dagState, runCtx)
		program.Send(tea.QuitMsg{})
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return <-resultCh
}

func resolvePipeline(app *appContext, ref, file string) (workflow.PipelineDefinition, error) {
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return workflow.PipelineDefinition{}, err
		}
		return config.ParsePipeline(raw)
	}
	def, ok := app.registry.Get(ref)
	if !ok {
		return workflow.PipelineDefinition{}, fmt.Errorf("pipeline %q not found in %s", ref, pipelinesDir(app.dataDir))
	}
	return def, nil
}

func parseParams(pairs []string) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}

func translateRunErr(err error) error {
	if err == nil {
		return nil
	}
	var suspended *werrors.PipelineSuspendedError
	if errors.As(err, &suspended) {
		if suspended.CheckpointID != "" {
			return fmt.Errorf("run suspended: %s (resume with: flowctl resume %s)", suspended.Error(), suspended.CheckpointID)
		}
		return fmt.Errorf("run suspended (no checkpointer configured, resume point is not durable): %w", err)
	}
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
