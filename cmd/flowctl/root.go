package main

import (
	"github.com/spf13/cobra"
)

// rootFlags are the persistent flags every subcommand reads to build its
// own appContext.
type rootFlags struct {
	dataDir    string
	logLevel   string
	maxWorkers int64
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "flowctl",
		Short:         "flowctl runs and inspects flowforge DAG pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Root directory for pipelines, checkpoints, artifacts, and the catalog descriptor (default ~/.flowforge)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().Int64Var(&flags.maxWorkers, "max-workers", 4, "Maximum number of steps dispatched concurrently")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newResumeCmd(flags))
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (f *rootFlags) resolveDataDir() (string, error) {
	if f.dataDir != "" {
		return f.dataDir, nil
	}
	return defaultDataDir()
}
