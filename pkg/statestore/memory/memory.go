// Package memory implements pkg/statestore.Store entirely in process
// memory. It is used by stage unit tests that need a real Store without a
// database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

var _ statestore.Store = (*Store)(nil)

// Store is a sync.RWMutex-guarded in-memory implementation of
// statestore.Store.
type Store struct {
	mu sync.RWMutex

	content     map[string]statestore.ContentRecord // digest -> record
	originToKey map[string]string                   // origin_id -> digest
	origins     map[string]statestore.OriginMapping // origin_id -> mapping
	checkpoints map[string]string                   // name -> value
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		content:     make(map[string]statestore.ContentRecord),
		originToKey: make(map[string]string),
		origins:     make(map[string]statestore.OriginMapping),
		checkpoints: make(map[string]string),
	}
}

// Close is a no-op; there is no underlying resource to release.
func (s *Store) Close() error { return nil }

func (s *Store) UpsertContent(ctx context.Context, in statestore.UpsertContentInput) (*statestore.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, hadExisting := s.content[in.Digest]

	rec := statestore.ContentRecord{
		Digest:     in.Digest,
		ObjectKey:  in.ObjectKey,
		Extension:  in.Extension,
		Status:     in.Status,
		OriginName: in.OriginName,
		OriginPath: in.OriginPath,
		OriginMime: in.OriginMime,
		OriginSize: in.OriginSize,
		CreatedAt:  now,
	}

	if hadExisting {
		rec.SyncedAt = existing.SyncedAt
		rec.ProcessedAt = existing.ProcessedAt
		rec.IndexedAt = existing.IndexedAt
		rec.RetryCount = existing.RetryCount
		rec.TextLength = existing.TextLength
		rec.VectorFileID = existing.VectorFileID
		rec.VectorStoreID = existing.VectorStoreID
		rec.CreatedAt = existing.CreatedAt
		if in.ObjectKey == "" {
			rec.ObjectKey = existing.ObjectKey
		}
		if in.Extension == "" {
			rec.Extension = existing.Extension
		}
	}

	if in.TextLength != nil {
		rec.TextLength = *in.TextLength
	}
	if in.VectorFileID != nil {
		rec.VectorFileID = *in.VectorFileID
	}
	if in.VectorStoreID != nil {
		rec.VectorStoreID = *in.VectorStoreID
	}

	success := in.Err == nil
	if success {
		switch in.Status {
		case statestore.StatusSynced:
			if rec.SyncedAt == nil {
				rec.SyncedAt = &now
			}
		case statestore.StatusProcessed:
			if rec.ProcessedAt == nil {
				rec.ProcessedAt = &now
			}
		case statestore.StatusIndexed:
			if rec.IndexedAt == nil {
				rec.IndexedAt = &now
			}
		}
		rec.ErrorMessage = ""
		rec.ErrorKind = ""
		rec.LastErrorAt = nil
	} else {
		rec.ErrorMessage = in.Err.Error()
		rec.ErrorKind = ingesterr.KindOf(in.Err).String()
		rec.RetryCount++
		rec.LastErrorAt = &now
	}

	rec.UpdatedAt = now
	s.content[in.Digest] = rec

	out := rec
	return &out, nil
}

func (s *Store) GetContentByDigest(ctx context.Context, digest string) (*statestore.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.content[digest]
	if !ok {
		return nil, statestore.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *Store) GetContentByOriginID(ctx context.Context, originID string) (*statestore.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	digest, ok := s.originToKey[originID]
	if !ok {
		return nil, statestore.ErrNotFound
	}
	rec, ok := s.content[digest]
	if !ok {
		return nil, statestore.ErrNotFound
	}
	out := rec
	return &out, nil
}

func (s *Store) ListByStatus(ctx context.Context, status statestore.Status, limit int) ([]statestore.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []statestore.ContentRecord
	for _, rec := range s.content {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListStale(ctx context.Context, statuses []statestore.Status, olderThan time.Time) ([]statestore.ContentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want := make(map[statestore.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []statestore.ContentRecord
	for _, rec := range s.content {
		if want[rec.Status] && rec.UpdatedAt.Before(olderThan) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) MarkStaleFailed(ctx context.Context, maxAge time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := time.Now().UTC().Add(-maxAge)
	now := time.Now().UTC()
	count := 0

	for digest, rec := range s.content {
		var next statestore.Status
		switch rec.Status {
		case statestore.StatusProcessing:
			next = statestore.StatusFailedProcess
		case statestore.StatusIndexing:
			next = statestore.StatusFailedIndex
		default:
			continue
		}
		if !rec.UpdatedAt.Before(threshold) {
			continue
		}

		rec.Status = next
		rec.ErrorMessage = "stale: no progress within " + maxAge.String()
		rec.ErrorKind = ingesterr.StaleProcessing.String()
		rec.RetryCount++
		rec.LastErrorAt = &now
		rec.UpdatedAt = now
		s.content[digest] = rec
		count++
	}

	return count, nil
}

func (s *Store) UpsertOriginMapping(ctx context.Context, in statestore.UpsertOriginMappingInput) (*statestore.OriginMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := s.origins[in.OriginID]

	m := statestore.OriginMapping{
		OriginID:         in.OriginID,
		Digest:           in.Digest,
		Name:             in.Name,
		Path:             in.Path,
		Mime:             in.Mime,
		OriginCreatedAt:  in.OriginCreatedAt,
		OriginModifiedAt: in.OriginModifiedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if ok {
		m.CreatedAt = existing.CreatedAt
	}

	s.origins[in.OriginID] = m
	s.originToKey[in.OriginID] = in.Digest

	out := m
	return &out, nil
}

func (s *Store) GetCheckpoint(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.checkpoints[name]
	return value, ok, nil
}

func (s *Store) SetCheckpoint(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[name] = value
	return nil
}

func (s *Store) Statistics(ctx context.Context) (statestore.Statistics, error) {
	if err := ctx.Err(); err != nil {
		return statestore.Statistics{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := statestore.Statistics{ByStatus: make(map[statestore.Status]int)}
	for _, rec := range s.content {
		stats.Total++
		stats.ByStatus[rec.Status]++
		if rec.HasError() {
			stats.WithErrors++
		}
	}
	return stats, nil
}
