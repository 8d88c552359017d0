package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage"
)

var indexFlags runFlags

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Upload extracted text to the vector-search service",
	Long: `Stream every processed ContentRecord's extracted text to the
configured vector-search service, attach it to the configured vector
store, and transition it to indexed.

Rediscovers its full eligible set from the state store every run.`,
	RunE: runIndex,
}

func init() {
	addDryRunMaxFiles(indexCmd, &indexFlags)
	addRetryFailed(indexCmd, &indexFlags)
	indexCmd.Flags().IntVar(&indexFlags.indexerWorkers, "indexer-workers", 0, "indexing worker pool size (0 = config default)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cfg, m, shutdown, err := bootstrap()
	if err != nil {
		return err
	}
	defer shutdown()

	d, err := buildCoreDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	workers := cfg.Index.Workers
	if indexFlags.indexerWorkers > 0 {
		workers = indexFlags.indexerWorkers
	}

	stage := indexstage.New(indexstage.Config{
		State:         d.state,
		Objects:       d.objects,
		Vector:        d.buildVector(),
		VectorStoreID: cfg.Index.VectorStoreID,
		Workers:       workers,
		DryRun:        indexFlags.dryRun,
	})

	result, err := stage.Run(ctx, indexstage.RunOptions{
		RetryFailed: indexFlags.retryFailed,
		MaxFiles:    indexFlags.maxFiles,
	})
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "index finished",
		"examined", result.Examined, "indexed", result.Indexed, "failed", result.Failed)
	fmt.Printf("index: examined=%d indexed=%d failed=%d\n", result.Examined, result.Indexed, result.Failed)

	m.RecordIndex(result.Indexed, result.Failed)

	return nil
}
