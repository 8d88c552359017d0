package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

const contentColumns = `digest, object_key, extension, status,
	synced_at, processed_at, indexed_at,
	origin_name, origin_path, origin_mime, origin_size, text_length,
	vector_file_id, vector_store_id,
	error_message, error_kind, retry_count, last_error_at,
	created_at, updated_at`

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentRecord(row rowScanner) (*statestore.ContentRecord, error) {
	var rec statestore.ContentRecord
	var status string
	err := row.Scan(
		&rec.Digest, &rec.ObjectKey, &rec.Extension, &status,
		&rec.SyncedAt, &rec.ProcessedAt, &rec.IndexedAt,
		&rec.OriginName, &rec.OriginPath, &rec.OriginMime, &rec.OriginSize, &rec.TextLength,
		&rec.VectorFileID, &rec.VectorStoreID,
		&rec.ErrorMessage, &rec.ErrorKind, &rec.RetryCount, &rec.LastErrorAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = statestore.Status(status)
	return &rec, nil
}

// UpsertContent atomically inserts or updates the ContentRecord for
// in.Digest. It locks any existing row FOR UPDATE so concurrent transitions
// on the same digest serialize, computes the next row state in Go (carrying
// forward stage-success timestamps and retry_count),
// then writes it back in one statement.
func (s *Store) UpsertContent(ctx context.Context, in statestore.UpsertContentInput) (*statestore.ContentRecord, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "upsert_content", telemetry.Digest(in.Digest), telemetry.Status(string(in.Status)))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	tx, err := s.pool.Begin(acquireCtx)
	if err != nil {
		return nil, mapPgError(err, "upsert_content")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	existing, err := s.getContentForUpdateTx(ctx, tx, in.Digest)
	if err != nil {
		return nil, err
	}

	rec := statestore.ContentRecord{
		Digest:     in.Digest,
		ObjectKey:  in.ObjectKey,
		Extension:  in.Extension,
		Status:     in.Status,
		OriginName: in.OriginName,
		OriginPath: in.OriginPath,
		OriginMime: in.OriginMime,
		OriginSize: in.OriginSize,
	}

	if existing != nil {
		rec.SyncedAt = existing.SyncedAt
		rec.ProcessedAt = existing.ProcessedAt
		rec.IndexedAt = existing.IndexedAt
		rec.RetryCount = existing.RetryCount
		rec.TextLength = existing.TextLength
		rec.VectorFileID = existing.VectorFileID
		rec.VectorStoreID = existing.VectorStoreID
		if in.ObjectKey == "" {
			rec.ObjectKey = existing.ObjectKey
		}
		if in.Extension == "" {
			rec.Extension = existing.Extension
		}
	}

	if in.TextLength != nil {
		rec.TextLength = *in.TextLength
	}
	if in.VectorFileID != nil {
		rec.VectorFileID = *in.VectorFileID
	}
	if in.VectorStoreID != nil {
		rec.VectorStoreID = *in.VectorStoreID
	}

	now := time.Now().UTC()
	success := in.Err == nil

	if success {
		switch in.Status {
		case statestore.StatusSynced:
			if rec.SyncedAt == nil {
				rec.SyncedAt = &now
			}
		case statestore.StatusProcessed:
			if rec.ProcessedAt == nil {
				rec.ProcessedAt = &now
			}
		case statestore.StatusIndexed:
			if rec.IndexedAt == nil {
				rec.IndexedAt = &now
			}
		}
		// A successful transition clears the error block but never
		// clears retry_count or the stage-success timestamps.
		rec.ErrorMessage = ""
		rec.ErrorKind = ""
		rec.LastErrorAt = nil
	} else {
		rec.ErrorMessage = in.Err.Error()
		rec.ErrorKind = ingesterr.KindOf(in.Err).String()
		rec.RetryCount++
		rec.LastErrorAt = &now
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO content_records (
			digest, object_key, extension, status,
			synced_at, processed_at, indexed_at,
			origin_name, origin_path, origin_mime, origin_size, text_length,
			vector_file_id, vector_store_id,
			error_message, error_kind, retry_count, last_error_at,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
		ON CONFLICT (digest) DO UPDATE SET
			object_key = EXCLUDED.object_key,
			extension = EXCLUDED.extension,
			status = EXCLUDED.status,
			synced_at = EXCLUDED.synced_at,
			processed_at = EXCLUDED.processed_at,
			indexed_at = EXCLUDED.indexed_at,
			origin_name = EXCLUDED.origin_name,
			origin_path = EXCLUDED.origin_path,
			origin_mime = EXCLUDED.origin_mime,
			origin_size = EXCLUDED.origin_size,
			text_length = EXCLUDED.text_length,
			vector_file_id = EXCLUDED.vector_file_id,
			vector_store_id = EXCLUDED.vector_store_id,
			error_message = EXCLUDED.error_message,
			error_kind = EXCLUDED.error_kind,
			retry_count = EXCLUDED.retry_count,
			last_error_at = EXCLUDED.last_error_at,
			updated_at = now()
		RETURNING `+contentColumns,
		rec.Digest, rec.ObjectKey, rec.Extension, string(rec.Status),
		rec.SyncedAt, rec.ProcessedAt, rec.IndexedAt,
		rec.OriginName, rec.OriginPath, rec.OriginMime, rec.OriginSize, rec.TextLength,
		rec.VectorFileID, rec.VectorStoreID,
		rec.ErrorMessage, rec.ErrorKind, rec.RetryCount, rec.LastErrorAt,
	)

	committed, err := scanContentRecord(row)
	if err != nil {
		return nil, mapPgError(err, "upsert_content")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(err, "upsert_content")
	}

	s.invalidateStats()
	return committed, nil
}

func (s *Store) getContentForUpdateTx(ctx context.Context, tx pgx.Tx, digest string) (*statestore.ContentRecord, error) {
	row := tx.QueryRow(ctx, `SELECT `+contentColumns+` FROM content_records WHERE digest = $1 FOR UPDATE`, digest)
	rec, err := scanContentRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapPgError(err, "upsert_content")
	}
	return rec, nil
}

// GetContentByDigest returns statestore.ErrNotFound if no record exists.
func (s *Store) GetContentByDigest(ctx context.Context, digest string) (*statestore.ContentRecord, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "get_content_by_digest", telemetry.Digest(digest))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(acquireCtx, `SELECT `+contentColumns+` FROM content_records WHERE digest = $1`, digest)
	rec, err := scanContentRecord(row)
	if err != nil {
		return nil, mapPgError(err, "get_content_by_digest")
	}
	return rec, nil
}

// GetContentByOriginID resolves a record via its current origin mapping.
func (s *Store) GetContentByOriginID(ctx context.Context, originID string) (*statestore.ContentRecord, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "get_content_by_origin_id", telemetry.OriginID(originID))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(acquireCtx, `
		SELECT `+prefixColumns("c.", contentColumns)+`
		FROM content_records c
		JOIN origin_mappings m ON m.digest = c.digest
		WHERE m.origin_id = $1`, originID)
	rec, err := scanContentRecord(row)
	if err != nil {
		return nil, mapPgError(err, "get_content_by_origin_id")
	}
	return rec, nil
}

// ListByStatus returns up to limit records in status, oldest-updated first.
func (s *Store) ListByStatus(ctx context.Context, status statestore.Status, limit int) ([]statestore.ContentRecord, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "list_by_status", telemetry.Status(string(status)))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	query := `SELECT ` + contentColumns + ` FROM content_records WHERE status = $1 ORDER BY updated_at ASC`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		rows, err = s.pool.Query(acquireCtx, query+` LIMIT $2`, string(status), limit)
	} else {
		rows, err = s.pool.Query(acquireCtx, query, string(status))
	}
	if err != nil {
		return nil, mapPgError(err, "list_by_status")
	}
	defer rows.Close()

	return collectContentRecords(rows)
}

// ListStale returns records in one of statuses whose updated_at predates
// olderThan.
func (s *Store) ListStale(ctx context.Context, statuses []statestore.Status, olderThan time.Time) ([]statestore.ContentRecord, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "list_stale")
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	statusStrs := make([]string, len(statuses))
	for i, st := range statuses {
		statusStrs[i] = string(st)
	}

	rows, err := s.pool.Query(acquireCtx, `
		SELECT `+contentColumns+` FROM content_records
		WHERE status = ANY($1) AND updated_at < $2
		ORDER BY updated_at ASC`, statusStrs, olderThan)
	if err != nil {
		return nil, mapPgError(err, "list_stale")
	}
	defer rows.Close()

	return collectContentRecords(rows)
}

// MarkStaleFailed transitions processing -> failed_process and indexing ->
// failed_index for records idle longer than maxAge, recording a synthetic
// StaleProcessing error. Returns the number of rows transitioned.
func (s *Store) MarkStaleFailed(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "mark_stale_failed")
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	threshold := time.Now().UTC().Add(-maxAge)
	errKind := ingesterr.StaleProcessing.String()
	errMsg := "stale: no progress within " + maxAge.String()

	tag, err := s.pool.Exec(acquireCtx, `
		UPDATE content_records SET
			status = CASE status
				WHEN 'processing' THEN 'failed_process'
				WHEN 'indexing' THEN 'failed_index'
			END,
			error_message = $1,
			error_kind = $2,
			retry_count = retry_count + 1,
			last_error_at = now(),
			updated_at = now()
		WHERE status IN ('processing', 'indexing') AND updated_at < $3`,
		errMsg, errKind, threshold)
	if err != nil {
		return 0, mapPgError(err, "mark_stale_failed")
	}

	s.invalidateStats()
	return int(tag.RowsAffected()), nil
}

func collectContentRecords(rows pgx.Rows) ([]statestore.ContentRecord, error) {
	var out []statestore.ContentRecord
	for rows.Next() {
		rec, err := scanContentRecord(rows)
		if err != nil {
			return nil, mapPgError(err, "scan_content_record")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err, "scan_content_record")
	}
	return out, nil
}

func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
