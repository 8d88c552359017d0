package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
)

// GetCheckpoint reports ok=false if name was never set.
func (s *Store) GetCheckpoint(ctx context.Context, name string) (string, bool, error) {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "checkpoint", telemetry.Stage(name))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	var value string
	err := s.pool.QueryRow(acquireCtx, `SELECT value FROM checkpoints WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, mapPgError(err, "get_checkpoint")
	}
	return value, true, nil
}

// SetCheckpoint idempotently persists value under name.
func (s *Store) SetCheckpoint(ctx context.Context, name, value string) error {
	ctx, span := telemetry.StartStateStoreSpan(ctx, "checkpoint", telemetry.Stage(name))
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	_, err := s.pool.Exec(acquireCtx, `
		INSERT INTO checkpoints (name, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value)
	if err != nil {
		return mapPgError(err, "set_checkpoint")
	}

	return nil
}
