package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
)

var cleanupMaxStaleHours float64

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Fail content records stuck in processing or indexing past a staleness threshold",
	Long: `Transition any ContentRecord that has sat in processing or indexing
longer than --max-stale-hours into its corresponding failed_* state, so a
worker that died mid-record doesn't block that digest forever. The next
process/index run (with --retry-failed) picks it back up.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().Float64Var(&cleanupMaxStaleHours, "max-stale-hours", 0, "staleness threshold in hours (0 = config default, currently 24h)")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	ctx, cfg, _, shutdown, err := bootstrap()
	if err != nil {
		return err
	}
	defer shutdown()

	d, err := buildCoreDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	maxAge := cfg.Maintenance.MaxStaleAge
	if cleanupMaxStaleHours > 0 {
		maxAge = time.Duration(cleanupMaxStaleHours * float64(time.Hour))
	}

	n, err := d.buildMaintenance().StaleSweep(ctx, maxAge)
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "stale sweep finished", "transitioned", n, "max_age", maxAge.String())
	fmt.Printf("cleanup: transitioned=%d max_age=%s\n", n, maxAge)
	return nil
}
