package postgres

import (
	"context"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

const originColumns = `origin_id, digest, name, path, mime, origin_created_at, origin_modified_at, created_at, updated_at`

// UpsertOriginMapping inserts or updates the mapping for in.OriginID. Owned
// exclusively by the sync stage: created on first sight, updated on
// rename/move, never deleted.
func (s *Store) UpsertOriginMapping(ctx context.Context, in statestore.UpsertOriginMappingInput) (*statestore.OriginMapping, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "upsert_origin_mapping", telemetry.OriginID(in.OriginID), telemetry.Digest(in.Digest))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	row := s.pool.QueryRow(acquireCtx, `
		INSERT INTO origin_mappings (
			origin_id, digest, name, path, mime, origin_created_at, origin_modified_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
		ON CONFLICT (origin_id) DO UPDATE SET
			digest = EXCLUDED.digest,
			name = EXCLUDED.name,
			path = EXCLUDED.path,
			mime = EXCLUDED.mime,
			origin_created_at = EXCLUDED.origin_created_at,
			origin_modified_at = EXCLUDED.origin_modified_at,
			updated_at = now()
		RETURNING `+originColumns,
		in.OriginID, in.Digest, in.Name, in.Path, in.Mime, in.OriginCreatedAt, in.OriginModifiedAt,
	)

	var m statestore.OriginMapping
	if err := row.Scan(&m.OriginID, &m.Digest, &m.Name, &m.Path, &m.Mime,
		&m.OriginCreatedAt, &m.OriginModifiedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, mapPgError(err, "upsert_origin_mapping")
	}

	return &m, nil
}
