// Package commands implements the ingestpipeline CLI: the sync, process,
// index, full, migrate, stats, and cleanup subcommands over the Drive →
// object store → extraction → vector-index pipeline.
package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ingestpipeline",
	Short: "Drive-to-vector-index ingestion pipeline",
	Long: `ingestpipeline walks a Drive subtree, content-addresses and stores
each file, extracts searchable text (falling back to OCR for scanned
documents), and indexes the result in an external vector-search service.

Each stage is independently resumable: a crashed or interrupted run is
repaired by simply running the pipeline again, since every stage
rediscovers its full eligible set from the state store rather than relying
on the previous run's output.

Invoked with no subcommand, it runs "full".

Use "ingestpipeline [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFull,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/ingestpipeline/config.yaml)")

	// rootCmd's own flags mirror fullCmd's: running the bare binary with no
	// subcommand is equivalent to "ingestpipeline full".
	addDryRunMaxFiles(rootCmd, &fullFlags)
	addRetryFailed(rootCmd, &fullFlags)
	rootCmd.Flags().BoolVar(&fullFlags.forceFullSync, "force-full-sync", false, "ignore the checkpoint watermark and re-examine every Drive item")
	rootCmd.Flags().IntVar(&fullFlags.processorWorkers, "processor-workers", 0, "extraction worker pool size (0 = config default)")
	rootCmd.Flags().IntVar(&fullFlags.indexerWorkers, "indexer-workers", 0, "indexing worker pool size (0 = config default)")
	rootCmd.Flags().BoolVar(&fullFlags.useProcesses, "use-processes", false, "run OCR in a re-exec'd subprocess per worker instead of in-process")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(fullCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(cleanupCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
