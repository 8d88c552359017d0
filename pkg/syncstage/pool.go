package syncstage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// trackedItem carries one enumerated item through the worker pool. done is
// closed once a worker has recorded result, letting the checkpoint
// advancer wait for items strictly in enumeration order while workers
// themselves run out of order.
type trackedItem struct {
	item   drive.Item
	done   chan struct{}
	result ItemResult
}

// uploadLimiter caps new uploads (the state-changing outcome) across the
// worker pool. Workers reserve a slot before uploading, so the cap holds
// exactly even with several items in flight; skips and dedupe-links never
// touch it. max <= 0 means unbounded.
type uploadLimiter struct {
	max int32
	n   int32
}

func (l *uploadLimiter) tryReserve() bool {
	if l.max <= 0 {
		atomic.AddInt32(&l.n, 1)
		return true
	}
	for {
		cur := atomic.LoadInt32(&l.n)
		if cur >= l.max {
			return false
		}
		if atomic.CompareAndSwapInt32(&l.n, cur, cur+1) {
			return true
		}
	}
}

func (l *uploadLimiter) reached() bool {
	return l.max > 0 && atomic.LoadInt32(&l.n) >= l.max
}

// Run enumerates the configured drive subtree and processes every item
// through the per-item sync algorithm with a fixed-size worker pool. The checkpoint
// watermark only ever advances over a contiguous prefix of fully committed
// items, even though workers may finish out of enumeration order.
func (s *Stage) Run(ctx context.Context, opts RunOptions) (Result, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanSyncRun, "")
	defer span.End()

	cfg := s.cfg
	dryRun := cfg.DryRun

	enumDrive, err := s.driveClient(ctx)
	if err != nil {
		return Result{}, err
	}

	var modifiedAfter *time.Time
	if !opts.ForceFullSync {
		if v, ok, err := cfg.State.GetCheckpoint(ctx, statestore.DriveSyncLastModified); err != nil {
			return Result{}, err
		} else if ok {
			if t, perr := time.Parse(time.RFC3339, v); perr == nil {
				modifiedAfter = &t
			}
		}
	}

	it, err := enumDrive.Enumerate(ctx, cfg.RootFolderID, modifiedAfter)
	if err != nil {
		return Result{}, err
	}

	var items []drive.Item
	for it.Next(ctx) {
		items = append(items, it.Item())
	}
	if err := it.Err(); err != nil {
		return Result{}, err
	}

	if len(items) == 0 {
		return Result{}, nil
	}

	itemsCh := make(chan *trackedItem, cfg.Workers*2)
	trackedCh := make(chan *trackedItem, len(items))
	limiter := &uploadLimiter{max: int32(opts.MaxNewUploads)}
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dc, oc, werr := s.newWorkerClients(ctx)
			if werr != nil {
				for ti := range itemsCh {
					ti.result = ItemResult{Item: ti.item, Outcome: OutcomeFailed, Err: werr}
					close(ti.done)
				}
				return
			}
			w := &worker{stage: s, drive: dc, objects: oc, uploads: limiter}
			for ti := range itemsCh {
				ti.result = w.processItem(ctx, ti.item, dryRun)
				close(ti.done)
			}
		}()
	}

	go func() {
		defer close(itemsCh)
		defer close(trackedCh)
		for _, item := range items {
			if ctx.Err() != nil {
				return
			}
			if limiter.reached() {
				return
			}
			ti := &trackedItem{item: item, done: make(chan struct{})}
			trackedCh <- ti
			itemsCh <- ti
		}
	}()

	var result Result
	var latestModified time.Time
	committedSinceCheckpoint := 0
	capReached := false

	for ti := range trackedCh {
		<-ti.done
		result.Examined++

		switch ti.result.Outcome {
		case OutcomeSkip:
			result.Skipped++
		case OutcomeMetadataOnly:
			result.MetadataOnly++
		case OutcomeDedupeLink:
			result.DedupeLinked++
		case OutcomeNewUpload:
			result.NewUploads++
		case OutcomeFailed:
			result.Failed++
		}

		// A capped or failed item was examined but not ingested; freezing
		// the watermark here keeps it eligible for the next incremental run,
		// along with everything enumerated after it.
		if ti.result.capped || ti.result.Outcome == OutcomeFailed {
			capReached = true
		}

		if !capReached && ti.result.Err == nil && ti.result.Outcome != OutcomeFailed && !ti.item.ModifiedAt.IsZero() {
			if ti.item.ModifiedAt.After(latestModified) {
				latestModified = ti.item.ModifiedAt
			}
			committedSinceCheckpoint++
			if !dryRun && committedSinceCheckpoint >= cfg.CheckpointEvery {
				if err := cfg.State.SetCheckpoint(ctx, statestore.DriveSyncLastModified, latestModified.UTC().Format(time.RFC3339)); err != nil {
					return result, err
				}
				result.CheckpointSet = true
				committedSinceCheckpoint = 0
			}
		}
	}

	wg.Wait()

	if !dryRun && !latestModified.IsZero() {
		if err := cfg.State.SetCheckpoint(ctx, statestore.DriveSyncLastModified, latestModified.UTC().Format(time.RFC3339)); err != nil {
			return result, err
		}
		result.CheckpointSet = true
	}
	result.LastModified = latestModified

	return result, nil
}

func (s *Stage) driveClient(ctx context.Context) (drive.Store, error) {
	if s.cfg.NewDriveClient != nil {
		return s.cfg.NewDriveClient(ctx)
	}
	return s.cfg.SharedDrive, nil
}

// newWorkerClients builds the per-worker drive and object-store clients,
// falling back to the shared clients when no factory is configured.
func (s *Stage) newWorkerClients(ctx context.Context) (drive.Store, objectstore.Store, error) {
	d := s.cfg.SharedDrive
	if s.cfg.NewDriveClient != nil {
		dd, err := s.cfg.NewDriveClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		d = dd
	}

	o := s.cfg.SharedObjects
	if s.cfg.NewObjectClient != nil {
		oo, err := s.cfg.NewObjectClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		o = oo
	}

	return d, o, nil
}
