package objectstore

import "github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"

// ErrNotFound is returned by Head/Get/Delete-adjacent reads when key does
// not exist. It is always Permanent: retrying a lookup that already
// completed successfully (as "not found") cannot succeed differently.
var ErrNotFound = ingesterr.New(ingesterr.Permanent, "object not found")

// TransientBackendError wraps a backend error the caller should retry with
// backoff (network errors, throttling, 5xx responses).
func TransientBackendError(op string, cause error) *ingesterr.Error {
	return ingesterr.Transient("objectstore: "+op, cause)
}

// PermanentBackendError wraps a backend error that should surface
// immediately (bad request, access denied, not found).
func PermanentBackendError(op string, cause error) *ingesterr.Error {
	return ingesterr.PermanentErr("objectstore: "+op, cause)
}
