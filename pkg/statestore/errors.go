package statestore

import "github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = ingesterr.New(ingesterr.Permanent, "statestore: not found")

// TransientError wraps a backend failure (connection loss, pool exhaustion,
// deadlock) as retriable.
func TransientError(op string, cause error) *ingesterr.Error {
	return ingesterr.Transient("statestore: "+op, cause)
}

// PermanentError wraps an unrecoverable backend failure (constraint
// violation other than the ones the store maps itself, malformed input).
func PermanentError(op string, cause error) *ingesterr.Error {
	return ingesterr.PermanentErr("statestore: "+op, cause)
}
