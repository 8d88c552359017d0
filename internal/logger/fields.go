package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation
// and querying across the sync, extraction, and indexing stages.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Pipeline identity
	// ========================================================================
	KeyStage    = "stage"     // sync, extract, index
	KeyRunID    = "run_id"    // one CLI invocation
	KeyDigest   = "digest"    // content-addressed SHA-256 digest
	KeyOriginID = "origin_id" // Drive file id

	// ========================================================================
	// Drive origin
	// ========================================================================
	KeyDriveName     = "drive_name"     // origin file name
	KeyMimeType      = "mime_type"      // origin mime type
	KeyModifiedTime  = "modified_time"  // origin modification timestamp
	KeyParentID      = "parent_id"      // Drive parent folder id
	KeyNativeFormat  = "native_format"  // Google-native doc type exported vs downloaded
	KeyCheckpointKey = "checkpoint_key" // checkpoint watermark name

	// ========================================================================
	// Content addressing / object store
	// ========================================================================
	KeyObjectKey  = "object_key"  // CAS object key
	KeyBucket     = "bucket"      // object store bucket
	KeyRegion     = "region"      // object store region
	KeySize       = "size"        // payload size in bytes
	KeyExtension  = "extension"   // stored file extension
	KeyAttempt    = "attempt"     // retry attempt number
	KeyMaxRetries = "max_retries" // maximum retry attempts

	// ========================================================================
	// Extraction stage
	// ========================================================================
	KeyStrategy      = "strategy"       // native, fast, ocr, fast_fallback
	KeyLanguageHint  = "language_hint"  // unstructured-style language hint code
	KeyCharsPerPage  = "chars_per_page" // characters-per-page density
	KeyPageCount     = "page_count"     // extracted page count
	KeyElementCount  = "element_count"  // number of partitioned elements
	KeyOCRTimeoutSec = "ocr_timeout_s"  // OCR timeout applied

	// ========================================================================
	// Indexing stage
	// ========================================================================
	KeyFileID        = "file_id"         // vector-service file id
	KeyVectorStoreID = "vector_store_id" // vector-service vector store id

	// ========================================================================
	// State machine
	// ========================================================================
	KeyStatus     = "status"      // ContentRecord status
	KeyPrevStatus = "prev_status" // status before this transition

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // operation duration in milliseconds
	KeyError      = "error"       // error message
	KeyErrorKind  = "error_kind"  // ingesterr.Kind string
	KeyWorkerID   = "worker_id"   // worker pool slot index
)

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Stage returns a slog.Attr for the pipeline stage name
func Stage(name string) slog.Attr {
	return slog.String(KeyStage, name)
}

// RunID returns a slog.Attr for a CLI invocation id
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// Digest returns a slog.Attr for a content digest
func Digest(d string) slog.Attr {
	return slog.String(KeyDigest, d)
}

// OriginID returns a slog.Attr for a Drive file id
func OriginID(id string) slog.Attr {
	return slog.String(KeyOriginID, id)
}

// DriveName returns a slog.Attr for the origin file name
func DriveName(name string) slog.Attr {
	return slog.String(KeyDriveName, name)
}

// MimeType returns a slog.Attr for the origin mime type
func MimeType(t string) slog.Attr {
	return slog.String(KeyMimeType, t)
}

// ParentID returns a slog.Attr for a Drive parent folder id
func ParentID(id string) slog.Attr {
	return slog.String(KeyParentID, id)
}

// NativeFormat returns a slog.Attr naming the exported native format
func NativeFormat(format string) slog.Attr {
	return slog.String(KeyNativeFormat, format)
}

// CheckpointKey returns a slog.Attr for a checkpoint watermark name
func CheckpointKey(key string) slog.Attr {
	return slog.String(KeyCheckpointKey, key)
}

// ObjectKey returns a slog.Attr for a CAS object key
func ObjectKey(key string) slog.Attr {
	return slog.String(KeyObjectKey, key)
}

// Bucket returns a slog.Attr for the object store bucket
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Region returns a slog.Attr for the object store region
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// Size returns a slog.Attr for a payload size in bytes
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Extension returns a slog.Attr for a stored file extension
func Extension(ext string) slog.Attr {
	return slog.String(KeyExtension, ext)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Strategy returns a slog.Attr for the partitioning strategy used
func Strategy(s string) slog.Attr {
	return slog.String(KeyStrategy, s)
}

// LanguageHint returns a slog.Attr for the derived language hint code
func LanguageHint(hint string) slog.Attr {
	return slog.String(KeyLanguageHint, hint)
}

// CharsPerPage returns a slog.Attr for characters-per-page density
func CharsPerPage(v float64) slog.Attr {
	return slog.Float64(KeyCharsPerPage, v)
}

// PageCount returns a slog.Attr for extracted page count
func PageCount(n int) slog.Attr {
	return slog.Int(KeyPageCount, n)
}

// ElementCount returns a slog.Attr for the number of partitioned elements
func ElementCount(n int) slog.Attr {
	return slog.Int(KeyElementCount, n)
}

// OCRTimeoutSec returns a slog.Attr for the OCR timeout applied, in seconds
func OCRTimeoutSec(s int) slog.Attr {
	return slog.Int(KeyOCRTimeoutSec, s)
}

// FileID returns a slog.Attr for the vector-service file id
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// VectorStoreID returns a slog.Attr for the vector-service vector store id
func VectorStoreID(id string) slog.Attr {
	return slog.String(KeyVectorStoreID, id)
}

// Status returns a slog.Attr for a ContentRecord status
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// PrevStatus returns a slog.Attr for the status before a transition
func PrevStatus(s string) slog.Attr {
	return slog.String(KeyPrevStatus, s)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for an ingesterr.Kind string value
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// WorkerID returns a slog.Attr for a worker pool slot index
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}
