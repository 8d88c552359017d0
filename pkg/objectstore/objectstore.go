// Package objectstore defines the content-addressed object-store contract
// used by every pipeline stage. A digest never moves without its bytes: the
// sync stage writes the canonical object, extraction writes a derivative
// bundle alongside it, and both rely on the same small surface.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Metadata holds user-supplied object metadata. Values are ASCII octet
// strings; callers MUST percent-encode non-ASCII values (origin names in
// particular) before storing them and decode them on read.
type Metadata map[string]string

// Well-known metadata keys written by the sync stage and relied on by
// replace_metadata's identity check.
const (
	MetaDigest   = "digest"
	MetaOriginID = "origin_id"
	MetaName     = "name"
	MetaPath     = "path"
)

// ObjectInfo is the result of a Head call.
type ObjectInfo struct {
	ContentType string
	Metadata    Metadata
	Size        int64
}

// VersionInfo describes one entry returned by ListVersions.
type VersionInfo struct {
	Key            string
	Version        string
	IsDeleteMarker bool
}

// KeyIterator is a pull-style iterator over object keys, mirroring the
// paginator pattern the backend SDKs already use. Next must be called
// before the first Key/Err; it returns false when exhausted or on error.
type KeyIterator interface {
	Next(ctx context.Context) bool
	Key() string
	Err() error
}

// VersionIterator is the ListVersions counterpart of KeyIterator.
type VersionIterator interface {
	Next(ctx context.Context) bool
	Version() VersionInfo
	Err() error
}

// Store is the object-store adapter contract: exists/head/get/put/
// replace_metadata/delete/list/list_versions, backed by a
// content-addressed bucket layout.
//
// Every operation fails with either a TransientBackendError (the caller
// should retry with backoff) or a PermanentBackendError (surface
// immediately). Implementations classify failures using internal/ingesterr.
type Store interface {
	// Exists reports whether key is present, without reading its metadata
	// or payload.
	Exists(ctx context.Context, key string) (bool, error)

	// Head returns content type and user metadata without reading the
	// payload.
	Head(ctx context.Context, key string) (ObjectInfo, error)

	// Get returns a stream over the full payload. The caller must close it.
	// Implementations MUST support callers reading in bounded-size chunks;
	// the total payload may exceed available memory.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put is idempotent at the byte level for identical payloads and MUST
	// NOT require a read-before-write.
	Put(ctx context.Context, key string, body io.Reader, contentType string, meta Metadata) error

	// ReplaceMetadata rewrites user metadata in place. Implementations MUST
	// preserve payload bytes and MUST preserve the digest metadata field,
	// since callers treat it as a self-describing identity check.
	ReplaceMetadata(ctx context.Context, key string, meta Metadata) error

	// Delete removes key. Idempotent: deleting a missing key returns nil.
	Delete(ctx context.Context, key string) error

	// List returns a lazy iterator over keys under prefix.
	List(ctx context.Context, prefix string) (KeyIterator, error)

	// ListVersions returns a lazy iterator over versions under prefix,
	// including delete markers.
	ListVersions(ctx context.Context, prefix string) (VersionIterator, error)
}

// Content-addressed layout. Every key is derived from a digest using a
// two-level hex shard so no single prefix accumulates millions of siblings.

// ObjectKey returns the canonical key for the primary object bytes of a
// digest: objects/AA/BB/<digest><ext>.
func ObjectKey(digest, ext string) string {
	return fmt.Sprintf("objects/%s/%s/%s%s", shard(digest, 0, 2), shard(digest, 2, 4), digest, ext)
}

// DerivativePrefix returns the directory holding a digest's derivative
// bundle: derivatives/AA/BB/<digest>/.
func DerivativePrefix(digest string) string {
	return fmt.Sprintf("derivatives/%s/%s/%s/", shard(digest, 0, 2), shard(digest, 2, 4), digest)
}

// Derivative bundle file names, in the order they must be uploaded.
const (
	ElementsFile = "elements.jsonl"
	TextFile     = "text.txt"
	MetaFile     = "meta.json"
)

// DerivativeKey returns the key for one file within a digest's derivative
// bundle.
func DerivativeKey(digest, file string) string {
	return DerivativePrefix(digest) + file
}

// Legacy marker layout, read-only during migration; nothing in the
// pipeline writes these anymore.
const (
	legacyIndexedPrefix = "indexed/"
	legacyFailedPrefix  = "failed/"
)

// LegacyIndexedMarkerKey returns the pre-migration "indexed" marker key for
// a digest, as written by the system this pipeline replaced.
func LegacyIndexedMarkerKey(digest string) string {
	return fmt.Sprintf("%s%s/%s.indexed", legacyIndexedPrefix, shard(digest, 0, 2), digest)
}

// LegacyFailedMarkerKey returns the pre-migration "failed" marker key for a
// digest.
func LegacyFailedMarkerKey(digest string) string {
	return fmt.Sprintf("%s%s/%s.txt", legacyFailedPrefix, shard(digest, 0, 2), digest)
}

// DigestFromLegacyIndexedKey extracts the digest from a legacy indexed
// marker key, or returns ok=false if key doesn't match that shape.
func DigestFromLegacyIndexedKey(key string) (digest string, ok bool) {
	if !strings.HasPrefix(key, legacyIndexedPrefix) || !strings.HasSuffix(key, ".indexed") {
		return "", false
	}
	base := strings.TrimSuffix(key[len(legacyIndexedPrefix):], ".indexed")
	parts := strings.SplitN(base, "/", 2)
	if len(parts) != 2 {
		return "", false
	}
	return parts[1], true
}

// DigestFromLegacyFailedKey extracts the digest from a legacy failed
// marker key, or returns ok=false if key doesn't match that shape.
func DigestFromLegacyFailedKey(key string) (digest string, ok bool) {
	if !strings.HasPrefix(key, legacyFailedPrefix) || !strings.HasSuffix(key, ".txt") {
		return "", false
	}
	base := strings.TrimSuffix(key[len(legacyFailedPrefix):], ".txt")
	parts := strings.SplitN(base, "/", 2)
	if len(parts) != 2 {
		return "", false
	}
	return parts[1], true
}

// DigestFromDerivativeMetaKey extracts the digest from a derivative
// bundle's meta.json key (derivatives/AA/BB/<digest>/meta.json), or
// returns ok=false if key doesn't match that shape.
func DigestFromDerivativeMetaKey(key string) (digest string, ok bool) {
	const prefix = "derivatives/"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "/"+MetaFile) {
		return "", false
	}
	base := strings.TrimSuffix(key[len(prefix):], "/"+MetaFile)
	parts := strings.Split(base, "/")
	if len(parts) != 3 {
		return "", false
	}
	return parts[2], true
}

func shard(digest string, start, end int) string {
	if len(digest) < end {
		return digest
	}
	return digest[start:end]
}
