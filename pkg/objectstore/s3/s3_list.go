package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
)

// List returns a lazy iterator over keys under prefix, paginating through
// ListObjectsV2 one page at a time.
func (s *Store) List(ctx context.Context, prefix string) (objectstore.KeyIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	})

	return &keyIterator{store: s, paginator: paginator}, nil
}

type keyIterator struct {
	store     *Store
	paginator *s3.ListObjectsV2Paginator
	page      []string
	idx       int
	err       error
}

func (it *keyIterator) Next(ctx context.Context) bool {
	for it.idx >= len(it.page) {
		if !it.paginator.HasMorePages() {
			return false
		}

		page, err := it.paginator.NextPage(ctx)
		if err != nil {
			if !isRetryableError(err) {
				it.err = objectstore.PermanentBackendError("list", err)
			} else {
				it.err = objectstore.TransientBackendError("list", err)
			}
			return false
		}

		it.page = it.page[:0]
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			it.page = append(it.page, it.store.stripPrefix(*obj.Key))
		}
		it.idx = 0
	}

	it.idx++
	return true
}

func (it *keyIterator) Key() string {
	if it.idx == 0 || it.idx > len(it.page) {
		return ""
	}
	return it.page[it.idx-1]
}

func (it *keyIterator) Err() error { return it.err }

// ListVersions returns a lazy iterator over versions under prefix,
// including delete markers.
func (s *Store) ListVersions(ctx context.Context, prefix string) (objectstore.VersionIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectVersionsPaginator(s.client, &s3.ListObjectVersionsInput{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	})

	return &versionIterator{store: s, paginator: paginator}, nil
}

type versionIterator struct {
	store     *Store
	paginator *s3.ListObjectVersionsPaginator
	page      []objectstore.VersionInfo
	idx       int
	err       error
}

func (it *versionIterator) Next(ctx context.Context) bool {
	for it.idx >= len(it.page) {
		if !it.paginator.HasMorePages() {
			return false
		}

		page, err := it.paginator.NextPage(ctx)
		if err != nil {
			if !isRetryableError(err) {
				it.err = objectstore.PermanentBackendError("list_versions", err)
			} else {
				it.err = objectstore.TransientBackendError("list_versions", err)
			}
			return false
		}

		it.page = it.page[:0]
		for _, v := range page.Versions {
			if v.Key == nil {
				continue
			}
			version := ""
			if v.VersionId != nil {
				version = *v.VersionId
			}
			it.page = append(it.page, objectstore.VersionInfo{
				Key:     it.store.stripPrefix(*v.Key),
				Version: version,
			})
		}
		for _, m := range page.DeleteMarkers {
			if m.Key == nil {
				continue
			}
			version := ""
			if m.VersionId != nil {
				version = *m.VersionId
			}
			it.page = append(it.page, objectstore.VersionInfo{
				Key:            it.store.stripPrefix(*m.Key),
				Version:        version,
				IsDeleteMarker: true,
			})
		}
		it.idx = 0
	}

	it.idx++
	return true
}

func (it *versionIterator) Version() objectstore.VersionInfo {
	if it.idx == 0 || it.idx > len(it.page) {
		return objectstore.VersionInfo{}
	}
	return it.page[it.idx-1]
}

func (it *versionIterator) Err() error { return it.err }

func (s *Store) stripPrefix(key string) string {
	if s.keyPrefix != "" && len(key) >= len(s.keyPrefix) {
		return key[len(s.keyPrefix):]
	}
	return key
}
