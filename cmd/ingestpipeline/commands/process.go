package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/extractstage"
)

var processFlags runFlags

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract text from synced content",
	Long: `Partition every synced ContentRecord into a derivative bundle
(elements, plain text, metadata), falling back to OCR for scanned
documents, and transition it to processed.

Rediscovers its full eligible set from the state store every run, so a
crashed invocation is repaired by simply running process again.`,
	RunE: runProcess,
}

func init() {
	addDryRunMaxFiles(processCmd, &processFlags)
	addRetryFailed(processCmd, &processFlags)
	processCmd.Flags().IntVar(&processFlags.processorWorkers, "processor-workers", 0, "extraction worker pool size (0 = config default)")
	processCmd.Flags().BoolVar(&processFlags.useProcesses, "use-processes", false, "run OCR in a re-exec'd subprocess per worker instead of in-process")
}

func runProcess(cmd *cobra.Command, args []string) error {
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

	workers := cfg.Extract.Workers
	if processFlags.processorWorkers > 0 {
		workers = processFlags.processorWorkers
	}

	stage := extractstage.New(extractstage.Config{
		State:        d.state,
		Objects:      d.objects,
		Workers:      workers,
		ChunkSize:    cfg.Extract.ChunkSize,
		UseProcesses: processFlags.useProcesses || cfg.Extract.UseProcesses,
		OCRTimeout:   cfg.Extract.OCRTimeout,
		DryRun:       processFlags.dryRun,
	})

	result, err := stage.Run(ctx, extractstage.RunOptions{
		RetryFailed: processFlags.retryFailed,
		MaxFiles:    processFlags.maxFiles,
	})
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "process finished",
		"examined", result.Examined, "failed", result.Failed, "empty", result.Empty)
	fmt.Printf("process: examined=%d failed=%d empty=%d\n", result.Examined, result.Failed, result.Empty)

	m.RecordExtract(result.Examined-result.Failed, result.Failed)

	return nil
}
