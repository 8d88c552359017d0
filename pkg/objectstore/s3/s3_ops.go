package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
)

// Exists reports whether key is present via a HEAD request.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := telemetry.StartObjectStoreSpan(ctx, "exists", key)
	defer span.End()

	fullKey := s.fullKey(key)
	var lastErr error

	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if err := s.sleepBeforeRetry(ctx, attempt, "Exists", fullKey); err != nil {
			return false, err
		}

		_, lastErr = s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
		})
		if lastErr == nil {
			return true, nil
		}
		if isNotFoundError(lastErr) {
			return false, nil
		}
		if !isRetryableError(lastErr) {
			return false, objectstore.PermanentBackendError("exists", lastErr)
		}
	}

	return false, objectstore.TransientBackendError("exists", lastErr)
}

// Head returns content type and user metadata without the payload.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	ctx, span := telemetry.StartObjectStoreSpan(ctx, "head", key)
	defer span.End()

	fullKey := s.fullKey(key)
	var result *s3.HeadObjectOutput
	var lastErr error

	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if err := s.sleepBeforeRetry(ctx, attempt, "Head", fullKey); err != nil {
			return objectstore.ObjectInfo{}, err
		}

		result, lastErr = s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
		})
		if lastErr == nil {
			break
		}
		if isNotFoundError(lastErr) {
			return objectstore.ObjectInfo{}, objectstore.ErrNotFound
		}
		if !isRetryableError(lastErr) {
			return objectstore.ObjectInfo{}, objectstore.PermanentBackendError("head", lastErr)
		}
	}
	if lastErr != nil {
		return objectstore.ObjectInfo{}, objectstore.TransientBackendError("head", lastErr)
	}

	info := objectstore.ObjectInfo{Metadata: decodeMetadata(result.Metadata)}
	if result.ContentType != nil {
		info.ContentType = *result.ContentType
	}
	if result.ContentLength != nil {
		info.Size = *result.ContentLength
	}
	return info, nil
}

// Get returns a stream over key's full payload. The caller must close it.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx, span := telemetry.StartObjectStoreSpan(ctx, "get", key)
	defer span.End()

	fullKey := s.fullKey(key)
	var result *s3.GetObjectOutput
	var lastErr error

	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if err := s.sleepBeforeRetry(ctx, attempt, "Get", fullKey); err != nil {
			return nil, err
		}

		result, lastErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
		})
		if lastErr == nil {
			return result.Body, nil
		}
		if isNotFoundError(lastErr) {
			return nil, objectstore.ErrNotFound
		}
		if !isRetryableError(lastErr) {
			return nil, objectstore.PermanentBackendError("get", lastErr)
		}
	}

	return nil, objectstore.TransientBackendError("get", lastErr)
}

// Put uploads body under key. Idempotent at the byte level for identical
// payloads; does not require a read-before-write.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string, meta objectstore.Metadata) error {
	ctx, span := telemetry.StartObjectStoreSpan(ctx, "put", key)
	defer span.End()

	fullKey := s.fullKey(key)

	// PutObject needs a re-readable body to retry; buffer once up front
	// rather than re-invoking the caller's reader, which may be a
	// non-seekable stream already partially consumed on a prior attempt.
	data, err := io.ReadAll(body)
	if err != nil {
		return objectstore.PermanentBackendError("put", fmt.Errorf("read payload: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if err := s.sleepBeforeRetry(ctx, attempt, "Put", fullKey); err != nil {
			return err
		}

		input := &s3.PutObjectInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(fullKey),
			Body:     bytes.NewReader(data),
			Metadata: encodeMetadata(meta),
		}
		if contentType != "" {
			input.ContentType = aws.String(contentType)
		}

		_, lastErr = s.client.PutObject(ctx, input)
		if lastErr == nil {
			if size := int64(len(data)); size > 0 {
				telemetry.SetAttributes(ctx, telemetry.Size(size))
			}
			return nil
		}
		if !isRetryableError(lastErr) {
			return objectstore.PermanentBackendError("put", lastErr)
		}
	}

	return objectstore.TransientBackendError("put", lastErr)
}

// ReplaceMetadata rewrites user metadata in place via a self-copy,
// preserving payload bytes and the digest metadata field.
func (s *Store) ReplaceMetadata(ctx context.Context, key string, meta objectstore.Metadata) error {
	ctx, span := telemetry.StartObjectStoreSpan(ctx, "replace_metadata", key)
	defer span.End()

	fullKey := s.fullKey(key)

	existing, err := s.Head(ctx, key)
	if err != nil {
		return err
	}
	if digest, ok := existing.Metadata[objectstore.MetaDigest]; ok {
		if _, ok := meta[objectstore.MetaDigest]; !ok {
			meta[objectstore.MetaDigest] = digest
		}
	}

	copySource := s.bucket + "/" + url.PathEscape(fullKey)

	var lastErr error
	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if err := s.sleepBeforeRetry(ctx, attempt, "ReplaceMetadata", fullKey); err != nil {
			return err
		}

		_, lastErr = s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(s.bucket),
			Key:               aws.String(fullKey),
			CopySource:        aws.String(copySource),
			Metadata:          encodeMetadata(meta),
			MetadataDirective: types.MetadataDirectiveReplace,
		})
		if lastErr == nil {
			return nil
		}
		if isNotFoundError(lastErr) {
			return objectstore.ErrNotFound
		}
		if !isRetryableError(lastErr) {
			return objectstore.PermanentBackendError("replace_metadata", lastErr)
		}
	}

	return objectstore.TransientBackendError("replace_metadata", lastErr)
}

// Delete removes key. Idempotent: deleting a missing key returns nil.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, span := telemetry.StartObjectStoreSpan(ctx, "delete", key)
	defer span.End()

	fullKey := s.fullKey(key)
	var lastErr error

	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if err := s.sleepBeforeRetry(ctx, attempt, "Delete", fullKey); err != nil {
			return err
		}

		_, lastErr = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullKey),
		})
		if lastErr == nil || isNotFoundError(lastErr) {
			return nil
		}
		if !isRetryableError(lastErr) {
			return objectstore.PermanentBackendError("delete", lastErr)
		}
	}

	return objectstore.TransientBackendError("delete", lastErr)
}

func (s *Store) sleepBeforeRetry(ctx context.Context, attempt int, op, key string) error {
	if attempt == 0 {
		return nil
	}
	backoff := s.calculateBackoff(attempt - 1)
	logger.Debug(op+": retrying", "backoff", backoff, "attempt", attempt, "max_retries", s.retry.maxRetries, "key", key)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

func encodeMetadata(meta objectstore.Metadata) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func decodeMetadata(meta map[string]string) objectstore.Metadata {
	if len(meta) == 0 {
		return objectstore.Metadata{}
	}
	out := make(objectstore.Metadata, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
