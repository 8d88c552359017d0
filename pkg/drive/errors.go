package drive

import "github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"

// ErrNotFound is returned when an item id no longer exists in the drive.
var ErrNotFound = ingesterr.New(ingesterr.Permanent, "drive: not found")

// TransientError wraps a retriable drive API failure (rate limit, 5xx,
// network error).
func TransientError(op string, cause error) *ingesterr.Error {
	return ingesterr.Transient("drive: "+op, cause)
}

// PermanentError wraps an unrecoverable drive API failure.
func PermanentError(op string, cause error) *ingesterr.Error {
	return ingesterr.PermanentErr("drive: "+op, cause)
}
