package syncstage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/bufpool"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// worker is the per-goroutine execution context: its own drive and
// object-store clients plus a shared handle to the state store.
type worker struct {
	stage   *Stage
	drive   drive.Store
	objects objectstore.Store
	uploads *uploadLimiter
}

// processItem runs the sync algorithm for one drive item, in order:
// origin fast-path, download+digest, content fast-path, upload.
func (w *worker) processItem(ctx context.Context, item drive.Item, dryRun bool) ItemResult {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanSyncUpload, "",
		telemetry.OriginID(item.OriginID), telemetry.DriveName(item.Name))
	defer span.End()

	state := w.stage.cfg.State
	displayName := drive.DisplayName(item)
	ext := filepath.Ext(displayName)

	if max := w.stage.cfg.MaxFileSize; max > 0 && item.Size > max {
		w.stage.cfg.log.Warn("skipping oversized item",
			"origin_id", item.OriginID, "name", displayName, "size", item.Size)
		return ItemResult{Item: item, Outcome: OutcomeSkip}
	}

	// Step 1: origin fast-path.
	rec, err := state.GetContentByOriginID(ctx, item.OriginID)
	if err == nil {
		same := rec.OriginName == displayName && rec.OriginPath == item.Path
		if same {
			return ItemResult{Item: item, Digest: rec.Digest, Outcome: OutcomeSkip}
		}

		if dryRun {
			return ItemResult{Item: item, Digest: rec.Digest, Outcome: OutcomeMetadataOnly}
		}

		if mdErr := w.objects.ReplaceMetadata(ctx, rec.ObjectKey, buildMetadata(rec.Digest, item.OriginID, displayName, item.Path)); mdErr != nil {
			return ItemResult{Item: item, Outcome: OutcomeFailed, Err: mdErr}
		}
		if _, mErr := state.UpsertOriginMapping(ctx, statestore.UpsertOriginMappingInput{
			OriginID: item.OriginID, Digest: rec.Digest,
			Name: displayName, Path: item.Path, Mime: item.MIME,
			OriginCreatedAt: item.CreatedAt, OriginModifiedAt: item.ModifiedAt,
		}); mErr != nil {
			return ItemResult{Item: item, Outcome: OutcomeFailed, Err: mErr}
		}
		if _, cErr := state.UpsertContent(ctx, statestore.UpsertContentInput{
			Digest: rec.Digest, ObjectKey: rec.ObjectKey, Extension: rec.Extension,
			Status:     rec.Status,
			OriginName: displayName, OriginPath: item.Path, OriginMime: item.MIME, OriginSize: item.Size,
		}); cErr != nil {
			return ItemResult{Item: item, Outcome: OutcomeFailed, Err: cErr}
		}
		return ItemResult{Item: item, Digest: rec.Digest, Outcome: OutcomeMetadataOnly}
	} else if !errors.Is(err, statestore.ErrNotFound) {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: err}
	}

	if dryRun {
		if !w.uploads.tryReserve() {
			return ItemResult{Item: item, Outcome: OutcomeSkip, capped: true}
		}
		return ItemResult{Item: item, Outcome: OutcomeNewUpload}
	}

	// Step 2: download and digest, streaming through a temp file so large
	// payloads never sit fully in memory.
	digest, size, tmpPath, err := w.downloadAndDigest(ctx, item)
	if err != nil {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: err}
	}
	defer os.Remove(tmpPath)

	objectKey := objectstore.ObjectKey(digest, ext)

	// Step 3: content fast-path.
	if _, err := state.GetContentByDigest(ctx, digest); err == nil {
		if _, mErr := state.UpsertOriginMapping(ctx, statestore.UpsertOriginMappingInput{
			OriginID: item.OriginID, Digest: digest,
			Name: displayName, Path: item.Path, Mime: item.MIME,
			OriginCreatedAt: item.CreatedAt, OriginModifiedAt: item.ModifiedAt,
		}); mErr != nil {
			return ItemResult{Item: item, Outcome: OutcomeFailed, Err: mErr}
		}
		return ItemResult{Item: item, Digest: digest, Outcome: OutcomeDedupeLink}
	} else if !errors.Is(err, statestore.ErrNotFound) {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: err}
	}

	// Step 4: upload, then register. ContentRecord MUST be written before
	// OriginMapping so a crash between the two leaves a retry observing
	// the object as already uploaded (content fast-path handles it).
	if !w.uploads.tryReserve() {
		// New-upload cap reached while this item was in flight; leave it
		// for the next run.
		return ItemResult{Item: item, Outcome: OutcomeSkip, capped: true}
	}
	f, err := os.Open(tmpPath)
	if err != nil {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: transientError("reopen_temp", err)}
	}
	defer f.Close()

	contentType := contentTypeFor(ext)
	meta := buildMetadata(digest, item.OriginID, displayName, item.Path)
	if err := w.objects.Put(ctx, objectKey, f, contentType, meta); err != nil {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: err}
	}

	if _, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: digest, ObjectKey: objectKey, Extension: ext, Status: statestore.StatusSynced,
		OriginName: displayName, OriginPath: item.Path, OriginMime: item.MIME, OriginSize: size,
	}); err != nil {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: err}
	}

	if _, err := state.UpsertOriginMapping(ctx, statestore.UpsertOriginMappingInput{
		OriginID: item.OriginID, Digest: digest,
		Name: displayName, Path: item.Path, Mime: item.MIME,
		OriginCreatedAt: item.CreatedAt, OriginModifiedAt: item.ModifiedAt,
	}); err != nil {
		return ItemResult{Item: item, Outcome: OutcomeFailed, Err: err}
	}

	return ItemResult{Item: item, Digest: digest, Outcome: OutcomeNewUpload}
}

func (w *worker) downloadAndDigest(ctx context.Context, item drive.Item) (digest string, size int64, tmpPath string, err error) {
	body, err := w.drive.Fetch(ctx, item)
	if err != nil {
		return "", 0, "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "syncstage-*")
	if err != nil {
		return "", 0, "", transientError("create_temp", err)
	}
	defer tmp.Close()

	buf := bufpool.Get(bufpool.DefaultLargeSize)
	defer bufpool.Put(buf)

	h := sha256.New()
	n, err := io.CopyBuffer(io.MultiWriter(h, tmp), body, buf)
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, "", transientError("download", err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, tmp.Name(), nil
}

func buildMetadata(digest, originID, name, path string) objectstore.Metadata {
	return objectstore.Metadata{
		objectstore.MetaDigest:   digest,
		objectstore.MetaOriginID: originID,
		objectstore.MetaName:     percentEncode(name),
		objectstore.MetaPath:     percentEncode(path),
	}
}
