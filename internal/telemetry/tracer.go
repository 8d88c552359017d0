package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for pipeline operations, following OpenTelemetry
// semantic conventions where applicable.
const (
	// ========================================================================
	// Pipeline identity
	// ========================================================================
	AttrStage    = "pipeline.stage" // sync, extract, index
	AttrRunID    = "pipeline.run_id"
	AttrDigest   = "content.digest"
	AttrOriginID = "origin.id"

	// ========================================================================
	// Drive origin
	// ========================================================================
	AttrDriveName    = "origin.name"
	AttrMimeType     = "origin.mime_type"
	AttrNativeFormat = "origin.native_format"

	// ========================================================================
	// Object store
	// ========================================================================
	AttrObjectKey = "objectstore.key"
	AttrBucket    = "objectstore.bucket"
	AttrRegion    = "objectstore.region"
	AttrSize      = "content.size"

	// ========================================================================
	// Extraction
	// ========================================================================
	AttrStrategy     = "extract.strategy"
	AttrLanguageHint = "extract.language_hint"
	AttrPageCount    = "extract.page_count"

	// ========================================================================
	// Indexing
	// ========================================================================
	AttrFileID        = "index.file_id"
	AttrVectorStoreID = "index.vector_store_id"

	// ========================================================================
	// State machine
	// ========================================================================
	AttrStatus     = "state.status"
	AttrPrevStatus = "state.prev_status"

	// ========================================================================
	// Retry / backoff
	// ========================================================================
	AttrAttempt    = "retry.attempt"
	AttrMaxRetries = "retry.max_retries"
)

// Span names for pipeline operations.
// Format: <stage>.<operation>
const (
	SpanSyncEnumerate = "sync.enumerate"
	SpanSyncFetch     = "sync.fetch"
	SpanSyncUpload    = "sync.upload"
	SpanSyncRun       = "sync.run"

	SpanExtractPartition = "extract.partition"
	SpanExtractOCR       = "extract.ocr"
	SpanExtractUpload    = "extract.upload"
	SpanExtractRun       = "extract.run"

	SpanIndexUpload = "index.upload"
	SpanIndexAttach = "index.attach"
	SpanIndexRun    = "index.run"

	SpanObjectStoreGet    = "objectstore.get"
	SpanObjectStorePut    = "objectstore.put"
	SpanObjectStoreHead   = "objectstore.head"
	SpanObjectStoreDelete = "objectstore.delete"

	SpanStateUpsert       = "statestore.upsert"
	SpanStateListByStatus = "statestore.list_by_status"
	SpanStateListStale    = "statestore.list_stale"
	SpanStateCheckpoint   = "statestore.checkpoint"

	SpanMaintenanceMigrate = "maintenance.migrate_legacy_markers"
	SpanMaintenanceSweep   = "maintenance.stale_sweep"
)

// Stage returns an attribute for the pipeline stage name
func Stage(name string) attribute.KeyValue {
	return attribute.String(AttrStage, name)
}

// RunID returns an attribute for a CLI invocation id
func RunID(id string) attribute.KeyValue {
	return attribute.String(AttrRunID, id)
}

// Digest returns an attribute for a content digest
func Digest(d string) attribute.KeyValue {
	return attribute.String(AttrDigest, d)
}

// OriginID returns an attribute for a Drive file id
func OriginID(id string) attribute.KeyValue {
	return attribute.String(AttrOriginID, id)
}

// DriveName returns an attribute for an origin file name
func DriveName(name string) attribute.KeyValue {
	return attribute.String(AttrDriveName, name)
}

// MimeType returns an attribute for an origin mime type
func MimeType(t string) attribute.KeyValue {
	return attribute.String(AttrMimeType, t)
}

// NativeFormat returns an attribute for the exported native format
func NativeFormat(format string) attribute.KeyValue {
	return attribute.String(AttrNativeFormat, format)
}

// ObjectKey returns an attribute for a CAS object key
func ObjectKey(key string) attribute.KeyValue {
	return attribute.String(AttrObjectKey, key)
}

// Bucket returns an attribute for the object store bucket
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// Region returns an attribute for the object store region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// Size returns an attribute for a payload size in bytes
func Size(size int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, size)
}

// Strategy returns an attribute for the partitioning strategy used
func Strategy(s string) attribute.KeyValue {
	return attribute.String(AttrStrategy, s)
}

// LanguageHint returns an attribute for the derived language hint code
func LanguageHint(hint string) attribute.KeyValue {
	return attribute.String(AttrLanguageHint, hint)
}

// PageCount returns an attribute for extracted page count
func PageCount(n int) attribute.KeyValue {
	return attribute.Int(AttrPageCount, n)
}

// FileID returns an attribute for the vector-service file id
func FileID(id string) attribute.KeyValue {
	return attribute.String(AttrFileID, id)
}

// VectorStoreID returns an attribute for the vector-service vector store id
func VectorStoreID(id string) attribute.KeyValue {
	return attribute.String(AttrVectorStoreID, id)
}

// Status returns an attribute for a ContentRecord status
func Status(s string) attribute.KeyValue {
	return attribute.String(AttrStatus, s)
}

// PrevStatus returns an attribute for the status before a transition
func PrevStatus(s string) attribute.KeyValue {
	return attribute.String(AttrPrevStatus, s)
}

// Attempt returns an attribute for a retry attempt number
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// MaxRetries returns an attribute for the maximum retry attempts
func MaxRetries(n int) attribute.KeyValue {
	return attribute.Int(AttrMaxRetries, n)
}

// StartStageSpan starts a span for a pipeline stage operation on one item.
func StartStageSpan(ctx context.Context, spanName string, digest string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Digest(digest)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartObjectStoreSpan starts a span for an object-store operation.
func StartObjectStoreSpan(ctx context.Context, operation string, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{ObjectKey(key)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, "objectstore."+operation, trace.WithAttributes(allAttrs...))
}

// StartStateStoreSpan starts a span for a state-store operation.
func StartStateStoreSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "statestore."+operation, trace.WithAttributes(attrs...))
}
