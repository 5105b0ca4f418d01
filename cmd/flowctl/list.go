package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered pipelines and pending checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, root)
		},
	}
	return cmd
}

func runList(cmd *cobra.Command, root *rootFlags) error {
	dataDir, err := root.resolveDataDir()
	if err != nil {
		return newCommandError("list", "resolving data directory", err, "Set --data-dir explicitly or ensure $HOME is set.")
	}

	app, err := newAppContext(dataDir, root.logLevel, root.maxWorkers)
	if err != nil {
		return newCommandError("list", "initializing flowctl", err, "Check permissions on the data directory.")
	}
	defer app.close()

	ids := app.registry.IDs()
	fmt.Fprintf(cmd.OutOrStdout(), "Pipelines (%s):\n", pipelinesDir(dataDir))
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "  (none found — add a *.yaml file under the pipelines directory)")
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, id := range ids {
			def, _ := app.registry.Get(id)
			fmt.Fprintf(w, "  %s\t%s\t%d steps\n", id, def.Name, len(def.Steps))
		}
		w.Flush()
	}

	checkpoints, err := app.checkpoint.List()
	if err != nil {
		return newCommandError("list", "listing checkpoints", err, "Check permissions on the checkpoints directory.")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nCheckpoints (%s):\n", checkpointsDir(dataDir))
	if len(checkpoints) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "  (none — nothing is currently suspended)")
		return nil
	}
	for _, id := range checkpoints {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
	}
	return nil
}
