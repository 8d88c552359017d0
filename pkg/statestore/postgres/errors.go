package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// mapPgError classifies a pgx/PostgreSQL error into the statestore's error
// vocabulary so callers can branch on TransientBackend vs Permanent without
// seeing pgconn types.
func mapPgError(err error, operation string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return statestore.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgErrorCode(pgErr, operation)
	}

	// Connection loss, acquire timeout, context deadline while talking to
	// the pool: all retriable.
	return statestore.TransientError(operation, err)
}

func mapPgErrorCode(pgErr *pgconn.PgError, operation string) error {
	switch pgErr.Code {
	// 40001 serialization_failure, 40P01 deadlock_detected: transaction
	// conflicts under row-level locking, both retriable.
	case "40001", "40P01":
		return statestore.TransientError(operation, pgErr)

	// 57014 query_canceled, 53300 too_many_connections, 08xxx connection
	// errors: retriable backend trouble.
	case "57014", "53300":
		return statestore.TransientError(operation, pgErr)

	// 23505 unique_violation: the statestore always upserts via ON
	// CONFLICT, so a surfaced unique violation means the caller raced a
	// concurrent insert outside that path. Treat as permanent; the caller
	// is expected to re-read and retry at the application level if
	// appropriate.
	case "23505":
		return statestore.PermanentError(operation, fmt.Errorf("%w: unique violation", pgErr))

	// 23503 foreign_key_violation: an OriginMapping referencing a digest
	// with no ContentRecord. Permanent — it indicates a logic bug upstream
	// (every mapping must reference an existing record), not a transient
	// backend condition.
	case "23503":
		return statestore.PermanentError(operation, fmt.Errorf("%w: foreign key violation", pgErr))

	default:
		if pgErr.Code[:2] == "08" {
			return statestore.TransientError(operation, pgErr)
		}
		return statestore.PermanentError(operation, pgErr)
	}
}
