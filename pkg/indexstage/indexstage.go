// Package indexstage implements the final stage, which streams a
// processed ContentRecord's extracted text to an external vector-search
// service and transitions it to indexed.
package indexstage

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// VectorService is the external vector-search backend a ContentRecord's
// extracted text is uploaded to. It mirrors pkg/drive's adapter-contract
// shape: the stage depends only on this interface, and a concrete backend
// (pkg/indexstage/openai) implements it.
type VectorService interface {
	// UploadFile uploads name's contents (read from r) and returns the
	// backend's file handle.
	UploadFile(ctx context.Context, name string, r io.Reader) (fileID string, err error)

	// AttachFile associates a previously uploaded file with a vector
	// store so it becomes searchable.
	AttachFile(ctx context.Context, vectorStoreID, fileID string) error
}

// Config wires the indexing stage to its dependencies and tuning knobs.
type Config struct {
	State   statestore.Store
	Objects objectstore.Store
	Vector  VectorService

	// VectorStoreID is the fixed external vector store every file is
	// attached to.
	VectorStoreID string

	// Workers is the fixed pool size; kept low (3) by default to stay
	// within the external service's rate ceiling.
	Workers int

	DryRun bool
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 3
	}
}

// RunOptions controls one invocation's eligibility and scope.
type RunOptions struct {
	// RetryFailed also selects rows in failed_index, alongside processed.
	RetryFailed bool
	// MaxFiles caps the total number of records processed; 0 means no cap.
	MaxFiles int
}

// Result tallies one Run's outcomes.
type Result struct {
	Examined int
	Indexed  int
	Failed   int
}

// Stage is the indexing stage: discover eligible records, upload each
// one's text to the vector service, attach it to the configured store,
// and transition it.
type Stage struct {
	cfg Config
}

// New constructs a Stage from cfg, applying defaults for unset fields.
func New(cfg Config) *Stage {
	cfg.applyDefaults()
	return &Stage{cfg: cfg}
}

// Run discovers every eligible ContentRecord and indexes it across the
// configured worker pool.
func (s *Stage) Run(ctx context.Context, opts RunOptions) (Result, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanIndexRun, "")
	defer span.End()

	records, err := s.eligibleRecords(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	if opts.MaxFiles > 0 && len(records) > opts.MaxFiles {
		records = records[:opts.MaxFiles]
	}

	result := Result{}
	if len(records) == 0 {
		return result, nil
	}

	for _, err := range s.processAll(ctx, records) {
		result.Examined++
		if err != nil {
			result.Failed++
			continue
		}
		result.Indexed++
	}

	return result, nil
}

func (s *Stage) eligibleRecords(ctx context.Context, opts RunOptions) ([]statestore.ContentRecord, error) {
	records, err := s.cfg.State.ListByStatus(ctx, statestore.StatusProcessed, 0)
	if err != nil {
		return nil, err
	}
	if opts.RetryFailed {
		failed, err := s.cfg.State.ListByStatus(ctx, statestore.StatusFailedIndex, 0)
		if err != nil {
			return nil, err
		}
		records = append(records, failed...)
	}
	return records, nil
}

// processAll fans records out across cfg.Workers goroutines. Unlike
// pkg/extractstage's hand-rolled semaphore (which needs to track
// per-record strategy/empty outcomes alongside the error), each indexed
// record only needs a slot in outcomes and its own state-store error, so
// an errgroup with a concurrency limit covers the whole shape: records
// are independent, there is no shared result to merge beyond outcomes,
// and a per-record error never needs to cancel its siblings.
func (s *Stage) processAll(ctx context.Context, records []statestore.ContentRecord) []error {
	outcomes := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i := range records {
		if ctx.Err() != nil {
			// Stop picking up new work on cancellation; goroutines already
			// dispatched are left to finish their current transition.
			break
		}
		i := i
		g.Go(func() error {
			outcomes[i] = s.processRecord(gctx, &records[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// processRecord runs the full indexing algorithm for one record: state-machine
// guard, stream text.txt, upload + attach with backoff, persist handles,
// final transition.
func (s *Stage) processRecord(ctx context.Context, rec *statestore.ContentRecord) error {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanIndexRun, rec.Digest)
	defer span.End()

	state := s.cfg.State

	if s.cfg.DryRun {
		return nil
	}

	if _, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
		Status:     statestore.StatusIndexing,
		OriginName: rec.OriginName, OriginPath: rec.OriginPath, OriginMime: rec.OriginMime, OriginSize: rec.OriginSize,
	}); err != nil {
		return err
	}

	fileID, err := s.uploadText(ctx, rec)
	if err != nil {
		return s.fail(ctx, rec, err)
	}

	if err := s.attachWithBackoff(ctx, fileID); err != nil {
		return s.fail(ctx, rec, err)
	}

	vectorStoreID := s.cfg.VectorStoreID
	if _, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
		Status:     statestore.StatusIndexed,
		OriginName: rec.OriginName, OriginPath: rec.OriginPath, OriginMime: rec.OriginMime, OriginSize: rec.OriginSize,
		VectorFileID:  &fileID,
		VectorStoreID: &vectorStoreID,
	}); err != nil {
		return err
	}

	return nil
}

func (s *Stage) fail(ctx context.Context, rec *statestore.ContentRecord, cause error) error {
	_, uerr := s.cfg.State.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
		Status:     statestore.StatusFailedIndex,
		OriginName: rec.OriginName, OriginPath: rec.OriginPath, OriginMime: rec.OriginMime, OriginSize: rec.OriginSize,
		Err: cause,
	})
	if uerr != nil {
		return uerr
	}
	return cause
}

// uploadText streams derivatives/.../text.txt from CAS straight into the
// vector service, with backoff on the upload call.
func (s *Stage) uploadText(ctx context.Context, rec *statestore.ContentRecord) (string, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanIndexUpload, rec.Digest)
	defer span.End()

	var fileID string
	op := func() error {
		body, err := s.cfg.Objects.Get(ctx, objectstore.DerivativeKey(rec.Digest, "text.txt"))
		if err != nil {
			return classify(err)
		}
		defer body.Close()

		name := rec.Digest + ".txt"
		fileID, err = s.cfg.Vector.UploadFile(ctx, name, body)
		return classify(err)
	}

	if err := retry(ctx, op); err != nil {
		return "", err
	}
	return fileID, nil
}

func (s *Stage) attachWithBackoff(ctx context.Context, fileID string) error {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanIndexAttach, fileID)
	defer span.End()

	op := func() error {
		return classify(s.cfg.Vector.AttachFile(ctx, s.cfg.VectorStoreID, fileID))
	}
	return retry(ctx, op)
}
