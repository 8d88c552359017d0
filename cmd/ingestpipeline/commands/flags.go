package commands

import "github.com/spf13/cobra"

// runFlags collects the subset of per-invocation flags a given subcommand
// actually exposes; each command registers only the fields relevant to it.
type runFlags struct {
	dryRun           bool
	maxFiles         int
	retryFailed      bool
	forceFullSync    bool
	useProcesses     bool
	processorWorkers int
	indexerWorkers   int
}

func addDryRunMaxFiles(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "log intended actions without writing to any store")
	cmd.Flags().IntVar(&f.maxFiles, "max-files", 0, "cap the number of items processed in this invocation (0 = unbounded)")
}

func addRetryFailed(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().BoolVar(&f.retryFailed, "retry-failed", false, "also reprocess rows sitting in the corresponding failed_* state")
}

// ConfigError marks a configuration failure so main can map it to exit
// code 1, distinct from runtime errors (exit code 2).
type ConfigError struct{ Err error }

func (e *ConfigError) Error() string { return e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }
