// Package statestore defines the durable record of every content hash, its
// lifecycle state, origin mapping, error history, and sync checkpoints. It
// is the single coordination point that makes the three pipeline stages
// self-healing across crashes and restarts.
package statestore

import (
	"context"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
)

// Status is a ContentRecord's position in the pipeline lifecycle.
type Status string

const (
	StatusSynced        Status = "synced"
	StatusProcessing    Status = "processing"
	StatusProcessed     Status = "processed"
	StatusIndexing      Status = "indexing"
	StatusIndexed       Status = "indexed"
	StatusFailedSync    Status = "failed_sync"
	StatusFailedProcess Status = "failed_process"
	StatusFailedIndex   Status = "failed_index"
)

// stageSuccessField reports which first-success timestamp, if any, a
// transition into status sets.
func (s Status) stageSuccessField() string {
	switch s {
	case StatusSynced:
		return "synced_at"
	case StatusProcessed:
		return "processed_at"
	case StatusIndexed:
		return "indexed_at"
	default:
		return ""
	}
}

// ContentRecord is the central entity, keyed by content digest.
type ContentRecord struct {
	Digest    string
	ObjectKey string
	Extension string
	Status    Status

	SyncedAt    *time.Time
	ProcessedAt *time.Time
	IndexedAt   *time.Time

	// Origin snapshot, copied from the most recently seen originating item.
	OriginName string
	OriginPath string
	OriginMime string
	OriginSize int64
	TextLength int64

	VectorFileID  string
	VectorStoreID string

	ErrorMessage string
	ErrorKind    string
	RetryCount   int
	LastErrorAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasError reports whether the record's last transition failed.
func (c ContentRecord) HasError() bool {
	return c.ErrorMessage != ""
}

// OriginMapping ties a drive item to the content digest it currently
// resolves to. Many origins may point at the same digest.
type OriginMapping struct {
	OriginID string
	Digest   string

	Name string
	Path string
	Mime string

	OriginCreatedAt  time.Time
	OriginModifiedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Checkpoint is a small named watermark persisted between runs.
type Checkpoint struct {
	Name      string
	Value     string
	UpdatedAt time.Time
}

// DriveSyncLastModified is the checkpoint name the sync stage uses to
// persist its traversal watermark.
const DriveSyncLastModified = "drive_sync_last_modified"

// UpsertContentInput describes one atomic insert-or-update of a
// ContentRecord. When Err is nil the transition is a success: the error
// block is cleared (retry_count is preserved) and, if Status is a
// stage-success state, the corresponding first-success timestamp is set
// only if it is currently null. When Err is non-nil, Status MUST be one of
// the failed_* states; the error block is recorded and retry_count is
// incremented.
type UpsertContentInput struct {
	Digest    string
	ObjectKey string
	Extension string
	Status    Status

	OriginName string
	OriginPath string
	OriginMime string
	OriginSize int64

	// TextLength, if non-nil, overwrites the record's extracted-text size.
	TextLength *int64

	// VectorFileID/VectorStoreID, if non-nil, overwrite the external
	// handles recorded once a record reaches indexed.
	VectorFileID  *string
	VectorStoreID *string

	Err error
}

// errorKind returns the ingesterr.Kind recorded on the input, defaulting to
// Permanent when Err is nil or untyped.
func (in UpsertContentInput) errorKind() ingesterr.Kind {
	if in.Err == nil {
		return ingesterr.Permanent
	}
	return ingesterr.KindOf(in.Err)
}

// UpsertOriginMappingInput describes one insert-or-update of an
// OriginMapping, keyed by OriginID.
type UpsertOriginMappingInput struct {
	OriginID string
	Digest   string

	Name string
	Path string
	Mime string

	OriginCreatedAt  time.Time
	OriginModifiedAt time.Time
}

// Statistics summarizes ContentRecord counts for operational visibility.
type Statistics struct {
	Total      int
	WithErrors int
	ByStatus   map[Status]int
}

// Store is the durable state machine behind every pipeline stage. All
// mutating operations are single transactions; readers see committed state
// only. Implementations MUST serialize transitions on the same digest
// (row-level locking is sufficient) while tolerating unrelated digests
// transitioning concurrently.
type Store interface {
	// UpsertContent atomically inserts or updates the ContentRecord for
	// in.Digest and returns the row as committed.
	UpsertContent(ctx context.Context, in UpsertContentInput) (*ContentRecord, error)

	// GetContentByDigest returns ErrNotFound if no record exists.
	GetContentByDigest(ctx context.Context, digest string) (*ContentRecord, error)

	// GetContentByOriginID resolves a record via its current origin
	// mapping. Returns ErrNotFound if no mapping exists.
	GetContentByOriginID(ctx context.Context, originID string) (*ContentRecord, error)

	// ListByStatus returns up to limit records in status, ordered by
	// updated_at ascending so repeated calls make steady progress. limit
	// <= 0 means no limit.
	ListByStatus(ctx context.Context, status Status, limit int) ([]ContentRecord, error)

	// ListStale returns records in one of statuses whose updated_at
	// predates olderThan.
	ListStale(ctx context.Context, statuses []Status, olderThan time.Time) ([]ContentRecord, error)

	// MarkStaleFailed transitions processing -> failed_process and
	// indexing -> failed_index for every record whose updated_at predates
	// now-maxAge, recording a synthetic StaleProcessing error. Returns the
	// number of records transitioned.
	MarkStaleFailed(ctx context.Context, maxAge time.Duration) (int, error)

	// UpsertOriginMapping inserts or updates the mapping for
	// in.OriginID, pointing it at in.Digest.
	UpsertOriginMapping(ctx context.Context, in UpsertOriginMappingInput) (*OriginMapping, error)

	// GetCheckpoint reports the persisted value for name, or ok=false if
	// never set.
	GetCheckpoint(ctx context.Context, name string) (value string, ok bool, err error)

	// SetCheckpoint idempotently persists value under name.
	SetCheckpoint(ctx context.Context, name, value string) error

	// Statistics reports counts per status plus totals, for operational
	// visibility and the `stats` CLI subcommand.
	Statistics(ctx context.Context) (Statistics, error)

	// Close releases the store's underlying resources (connection pool,
	// prepared statements). Safe to call once, at shutdown.
	Close() error
}
