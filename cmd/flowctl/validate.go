package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/internal/config"
	"github.com/flowforge/flowforge/internal/engine"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline-file>",
		Short: "Parse and validate a pipeline YAML file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, root *rootFlags, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return newCommandError("validate", "reading pipeline file", err, "Check the path is correct.")
	}

	def, err := config.ParsePipeline(raw)
	if err != nil {
		return newCommandError("validate", "parsing pipeline YAML", err, "Fix the reported field and try again.")
	}

	dataDir, err := root.resolveDataDir()
	if err != nil {
		return newCommandError("validate", "resolving data directory", err, "Set --data-dir explicitly or ensure $HOME is set.")
	}
	app, err := newAppContext(dataDir, root.logLevel, root.maxWorkers)
	if err != nil {
		return newCommandError("validate", "initializing flowctl", err, "Check permissions on the data directory.")
	}
	defer app.close()

	deps, err := engine.NewValidator(app.catalog).Validate(def)
	if err != nil {
		return newCommandError("validate", "validating pipeline", err, "Fix the reported step, dependency, or plugin reference.")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (%d steps, %d dependency entries)\n", def.ID, len(def.Steps), len(deps))
	return nil
}
