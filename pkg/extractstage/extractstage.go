// Package extractstage implements the extraction stage, which turns
// a synced ContentRecord's raw bytes into a derivative bundle
// (elements.jsonl, text.txt, meta.json) and transitions it to processed.
package extractstage

import (
	"context"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/bufpool"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// Config wires the extraction stage to its dependencies and tuning knobs.
type Config struct {
	State   statestore.Store
	Objects objectstore.Store

	// Workers is the fixed pool size, shared by whichever worker-pool
	// implementation UseProcesses selects.
	Workers int

	// ChunkSize bounds how many records are held in flight at once;
	// runtime.GC() runs between chunks to keep long runs from creeping.
	ChunkSize int

	// UseProcesses selects the process-pool worker (one subprocess per
	// worker, for CPU-heavy OCR) instead of the thread pool.
	UseProcesses bool

	// OCRWorkerBinary is the executable the process pool re-execs with
	// the internal OCR-worker subcommand. Defaults to os.Executable().
	OCRWorkerBinary string

	// OCRTimeout is the hard wall-clock ceiling on the OCR pass.
	OCRTimeout time.Duration

	DryRun bool
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 100
	}
	if c.OCRTimeout <= 0 {
		c.OCRTimeout = defaultOCRTimeout
	}
}

// RunOptions controls one invocation's eligibility and scope.
type RunOptions struct {
	// RetryFailed also selects rows in failed_process, alongside synced.
	RetryFailed bool
	// MaxFiles caps the total number of records processed; 0 means no cap.
	MaxFiles int
}

// Result tallies one Run's outcomes.
type Result struct {
	Examined int
	Failed   int
	Empty    int

	ByStrategy map[Strategy]int
}

// Stage is the extraction stage: discover eligible records, partition
// each one, upload its derivative bundle, and transition it.
type Stage struct {
	cfg Config
}

// New constructs a Stage from cfg, applying defaults for unset fields.
func New(cfg Config) *Stage {
	cfg.applyDefaults()
	return &Stage{cfg: cfg}
}

// Run discovers every eligible ContentRecord and processes it through the
// configured worker pool, in chunks.
func (s *Stage) Run(ctx context.Context, opts RunOptions) (Result, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanExtractRun, "")
	defer span.End()

	records, err := s.eligibleRecords(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	if opts.MaxFiles > 0 && len(records) > opts.MaxFiles {
		records = records[:opts.MaxFiles]
	}

	result := Result{ByStrategy: map[Strategy]int{}}
	if len(records) == 0 {
		return result, nil
	}

	ocr := s.ocrRunner()

	for start := 0; start < len(records); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(records))
		chunk := records[start:end]

		outcomes := s.processChunk(ctx, chunk, ocr)
		for _, o := range outcomes {
			result.Examined++
			if o.err != nil {
				result.Failed++
				continue
			}
			if o.empty {
				result.Empty++
				continue
			}
			result.ByStrategy[o.strategy]++
		}

		runtime.GC()
	}

	return result, nil
}

func (s *Stage) eligibleRecords(ctx context.Context, opts RunOptions) ([]statestore.ContentRecord, error) {
	records, err := s.cfg.State.ListByStatus(ctx, statestore.StatusSynced, 0)
	if err != nil {
		return nil, err
	}
	if opts.RetryFailed {
		failed, err := s.cfg.State.ListByStatus(ctx, statestore.StatusFailedProcess, 0)
		if err != nil {
			return nil, err
		}
		records = append(records, failed...)
	}
	return records, nil
}

// processChunk fans a chunk of records out across cfg.Workers goroutines.
// Both worker-pool flavors share this dispatch shape; only ocr differs
// (in-process vs subprocess), matching how the thread pool and process
// pool differ solely in where partitioning's CPU-heavy work runs.
func (s *Stage) processChunk(ctx context.Context, chunk []statestore.ContentRecord, ocr ocrRunner) []recordOutcome {
	outcomes := make([]recordOutcome, len(chunk))
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for i := range chunk {
		if ctx.Err() != nil {
			// Stop picking up new work on cancellation; goroutines already
			// dispatched are left to finish their current transition.
			break
		}
		i := i
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = s.processRecord(ctx, &chunk[i], ocr)
		}()
	}
	wg.Wait()
	return outcomes
}

type recordOutcome struct {
	strategy Strategy
	empty    bool
	err      error
}

// processRecord runs the full extraction algorithm for one record: state-machine
// guard, download, partition, emptiness check, ordered artifact upload,
// final transition.
func (s *Stage) processRecord(ctx context.Context, rec *statestore.ContentRecord, ocr ocrRunner) recordOutcome {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanExtractPartition, rec.Digest)
	defer span.End()

	state := s.cfg.State

	if s.cfg.DryRun {
		return recordOutcome{}
	}

	if _, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
		Status:     statestore.StatusProcessing,
		OriginName: rec.OriginName, OriginPath: rec.OriginPath, OriginMime: rec.OriginMime, OriginSize: rec.OriginSize,
	}); err != nil {
		return recordOutcome{err: err}
	}

	strategy, empty, err := s.partitionAndUpload(ctx, rec, ocr)
	if err != nil {
		_, uerr := state.UpsertContent(ctx, statestore.UpsertContentInput{
			Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
			Status:     statestore.StatusFailedProcess,
			OriginName: rec.OriginName, OriginPath: rec.OriginPath, OriginMime: rec.OriginMime, OriginSize: rec.OriginSize,
			Err: err,
		})
		if uerr != nil {
			return recordOutcome{err: uerr}
		}
		return recordOutcome{empty: empty, err: err}
	}

	return recordOutcome{strategy: strategy}
}

// partitionAndUpload downloads the source object, partitions it, checks
// the emptiness policy, and uploads the derivative bundle. It returns
// empty=true when the failure is specifically the whitespace-only-text
// rule, so the caller can tally it separately from other failures.
func (s *Stage) partitionAndUpload(ctx context.Context, rec *statestore.ContentRecord, ocr ocrRunner) (Strategy, bool, error) {
	tmpPath, err := s.downloadToTemp(ctx, rec)
	if err != nil {
		return "", false, err
	}
	defer os.Remove(tmpPath)

	lang := LanguageHint(rec.OriginName)

	elements, strategy, err := partitionDocument(ctx, tmpPath, rec.Extension, lang, s.cfg.OCRTimeout, ocr)
	if err != nil {
		return "", false, err
	}

	text := ConcatenateText(elements)
	if isWhitespaceOnly(text) {
		return "", true, emptyContentError("empty_content")
	}

	meta := buildMeta(rec, elements, text, lang, strategy, time.Now())
	if err := uploadArtifacts(ctx, s.cfg.Objects, rec.Digest, elements, text, meta); err != nil {
		return "", false, err
	}

	textLen := int64(len(text))
	if _, err := s.cfg.State.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
		Status:     statestore.StatusProcessed,
		OriginName: rec.OriginName, OriginPath: rec.OriginPath, OriginMime: rec.OriginMime, OriginSize: rec.OriginSize,
		TextLength: &textLen,
	}); err != nil {
		return "", false, err
	}

	return strategy, false, nil
}

func (s *Stage) downloadToTemp(ctx context.Context, rec *statestore.ContentRecord) (string, error) {
	body, err := s.cfg.Objects.Get(ctx, rec.ObjectKey)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "extractstage-*"+rec.Extension)
	if err != nil {
		return "", transientError("create_temp", err)
	}
	defer tmp.Close()

	buf := bufpool.Get(bufpool.DefaultLargeSize)
	defer bufpool.Put(buf)

	if _, err := io.CopyBuffer(tmp, body, buf); err != nil {
		os.Remove(tmp.Name())
		return "", transientError("download", err)
	}
	return tmp.Name(), nil
}

// ocrRunner selects the in-process or subprocess OCR implementation based
// on cfg.UseProcesses.
func (s *Stage) ocrRunner() ocrRunner {
	if s.cfg.UseProcesses {
		return s.subprocessOCR
	}
	return inProcessOCR
}

func isWhitespaceOnly(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
