package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/extractstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/orchestrator"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/syncstage"
)

var fullFlags runFlags

// fullCmd runs sync, process, and index in sequence. It is the default
// subcommand: the one an unattended cron invocation reaches for.
var fullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run sync, process, and index in sequence (default)",
	Long: `Run the full pipeline: enumerate and upload new Drive content,
extract text from everything synced, and index everything processed.

Each stage still rediscovers its own eligible set from the state store, so
a cancelled or crashed run is repaired by running full again rather than
needing to resume from a saved position.`,
	RunE: runFull,
}

func init() {
	addDryRunMaxFiles(fullCmd, &fullFlags)
	addRetryFailed(fullCmd, &fullFlags)
	fullCmd.Flags().BoolVar(&fullFlags.forceFullSync, "force-full-sync", false, "ignore the checkpoint watermark and re-examine every Drive item")
	fullCmd.Flags().IntVar(&fullFlags.processorWorkers, "processor-workers", 0, "extraction worker pool size (0 = config default)")
	fullCmd.Flags().IntVar(&fullFlags.indexerWorkers, "indexer-workers", 0, "indexing worker pool size (0 = config default)")
	fullCmd.Flags().BoolVar(&fullFlags.useProcesses, "use-processes", false, "run OCR in a re-exec'd subprocess per worker instead of in-process")
}

func runFull(cmd *cobra.Command, args []string) error {
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

	drv, err := d.buildDrive(ctx)
	if err != nil {
		return err
	}

	processorWorkers := cfg.Extract.Workers
	if fullFlags.processorWorkers > 0 {
		processorWorkers = fullFlags.processorWorkers
	}
	indexerWorkers := cfg.Index.Workers
	if fullFlags.indexerWorkers > 0 {
		indexerWorkers = fullFlags.indexerWorkers
	}

	syncStg := syncstage.New(syncstage.Config{
		RootFolderID:    cfg.Drive.RootFolderID,
		SharedDrive:     drv,
		SharedObjects:   d.objects,
		State:           d.state,
		Workers:         cfg.Sync.Workers,
		CheckpointEvery: cfg.Sync.CheckpointEvery,
		MaxFileSize:     cfg.Sync.MaxFileSize.Int64(),
		DryRun:          fullFlags.dryRun,
	})
	extractStg := extractstage.New(extractstage.Config{
		State:        d.state,
		Objects:      d.objects,
		Workers:      processorWorkers,
		ChunkSize:    cfg.Extract.ChunkSize,
		UseProcesses: fullFlags.useProcesses || cfg.Extract.UseProcesses,
		OCRTimeout:   cfg.Extract.OCRTimeout,
		DryRun:       fullFlags.dryRun,
	})
	indexStg := indexstage.New(indexstage.Config{
		State:         d.state,
		Objects:       d.objects,
		Vector:        d.buildVector(),
		VectorStoreID: cfg.Index.VectorStoreID,
		Workers:       indexerWorkers,
		DryRun:        fullFlags.dryRun,
	})

	orch := orchestrator.New(orchestrator.Config{Sync: syncStg, Extract: extractStg, Index: indexStg})

	result, err := orch.RunFull(ctx, orchestrator.Options{
		ForceFullSync: fullFlags.forceFullSync,
		RetryFailed:   fullFlags.retryFailed,
		MaxFiles:      fullFlags.maxFiles,
	})
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "full pipeline finished",
		"sync_new_uploads", result.Sync.NewUploads,
		"extract_examined", result.Extract.Examined,
		"index_indexed", result.Index.Indexed)
	fmt.Printf("full: sync(new=%d failed=%d) process(examined=%d failed=%d) index(indexed=%d failed=%d)\n",
		result.Sync.NewUploads, result.Sync.Failed,
		result.Extract.Examined, result.Extract.Failed,
		result.Index.Indexed, result.Index.Failed)

	m.RecordSync(result.Sync.NewUploads, result.Sync.Failed)
	m.RecordExtract(result.Extract.Examined-result.Extract.Failed, result.Extract.Failed)
	m.RecordIndex(result.Index.Indexed, result.Index.Failed)

	return nil
}
