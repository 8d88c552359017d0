package maintenance_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/maintenance"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/memory"
)

// fakeObjects is a minimal in-memory objectstore.Store whose List actually
// walks its keys, unlike the stage-package fakes that stub List out.
type fakeObjects struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func newFakeObjects() *fakeObjects { return &fakeObjects{objs: map[string][]byte{}} }

func (f *fakeObjects) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objs[key]
	return ok, nil
}
func (f *fakeObjects) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	return objectstore.ObjectInfo{}, nil
}
func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objs[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
func (f *fakeObjects) Put(ctx context.Context, key string, body io.Reader, contentType string, meta objectstore.Metadata) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objs[key] = data
	return nil
}
func (f *fakeObjects) ReplaceMetadata(ctx context.Context, key string, meta objectstore.Metadata) error {
	return nil
}
func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objs, key)
	return nil
}
func (f *fakeObjects) List(ctx context.Context, prefix string) (objectstore.KeyIterator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &fakeKeyIterator{keys: keys, idx: -1}, nil
}
func (f *fakeObjects) ListVersions(ctx context.Context, prefix string) (objectstore.VersionIterator, error) {
	return nil, nil
}

type fakeKeyIterator struct {
	keys []string
	idx  int
}

func (it *fakeKeyIterator) Next(ctx context.Context) bool {
	it.idx++
	return it.idx < len(it.keys)
}
func (it *fakeKeyIterator) Key() string { return it.keys[it.idx] }
func (it *fakeKeyIterator) Err() error  { return nil }

func TestMigrateLegacyMarkers_BackfillsIndexedRecordForUntrackedDigest(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	objs.objs["objects/ab/cd/abcdef.pdf"] = []byte("legacy content")
	objs.objs[objectstore.LegacyIndexedMarkerKey("abcdef")] = []byte{}

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	result, err := m.MigrateLegacyMarkers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MarkersSeen)
	assert.Equal(t, 1, result.Migrated)
	assert.Equal(t, 0, result.AlreadyTracked)
	assert.Equal(t, 0, result.ObjectMissing)

	rec, err := state.GetContentByDigest(ctx, "abcdef")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusIndexed, rec.Status)
	assert.Equal(t, "objects/ab/cd/abcdef.pdf", rec.ObjectKey)
	assert.Equal(t, ".pdf", rec.Extension)
}

func TestMigrateLegacyMarkers_SkipsAlreadyTrackedDigest(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	objs.objs["objects/11/22/112233.txt"] = []byte("content")
	objs.objs[objectstore.LegacyIndexedMarkerKey("112233")] = []byte{}

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "112233", ObjectKey: "objects/11/22/112233.txt", Extension: ".txt",
		Status: statestore.StatusIndexed,
	})
	require.NoError(t, err)

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	result, err := m.MigrateLegacyMarkers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AlreadyTracked)
	assert.Equal(t, 0, result.Migrated)
}

func TestMigrateLegacyMarkers_CountsObjectMissing(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	objs.objs[objectstore.LegacyIndexedMarkerKey("ffaabb")] = []byte{}

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	result, err := m.MigrateLegacyMarkers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MarkersSeen)
	assert.Equal(t, 1, result.ObjectMissing)
	assert.Equal(t, 0, result.Migrated)
}

func TestMigrateLegacyMarkers_DerivativeMetaBecomesProcessed(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	objs.objs["objects/dd/ee/ddeeff.pdf"] = []byte("legacy content")
	objs.objs[objectstore.DerivativeKey("ddeeff", "meta.json")] = []byte(`{"digest":"ddeeff"}`)

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	result, err := m.MigrateLegacyMarkers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MarkersSeen)
	assert.Equal(t, 1, result.Migrated)

	rec, err := state.GetContentByDigest(ctx, "ddeeff")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusProcessed, rec.Status)
	assert.Equal(t, "objects/dd/ee/ddeeff.pdf", rec.ObjectKey)
}

func TestMigrateLegacyMarkers_FailedMarkerBecomesFailedProcess(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	objs.objs["objects/99/88/998877.pdf"] = []byte("legacy content")
	objs.objs[objectstore.LegacyFailedMarkerKey("998877")] = []byte("corrupt xref table\n")

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	result, err := m.MigrateLegacyMarkers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.MarkersSeen)
	assert.Equal(t, 1, result.Migrated)

	rec, err := state.GetContentByDigest(ctx, "998877")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusFailedProcess, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "corrupt xref table")
	assert.Equal(t, "Permanent", rec.ErrorKind)
}

func TestMigrateLegacyMarkers_FurthestStateWinsAcrossMarkers(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	objs.objs["objects/aa/bb/aabbcc.pdf"] = []byte("legacy content")
	objs.objs[objectstore.LegacyIndexedMarkerKey("aabbcc")] = []byte{}
	objs.objs[objectstore.DerivativeKey("aabbcc", "meta.json")] = []byte(`{}`)
	objs.objs[objectstore.LegacyFailedMarkerKey("aabbcc")] = []byte("stale failure from an earlier attempt")

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	result, err := m.MigrateLegacyMarkers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, result.MarkersSeen)
	assert.Equal(t, 1, result.Migrated)

	rec, err := state.GetContentByDigest(ctx, "aabbcc")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusIndexed, rec.Status)
	assert.Empty(t, rec.ErrorMessage)
}

func TestStaleSweep_DelegatesToStateStoreWithDefaultThreshold(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "stale1", ObjectKey: "objects/aa/bb/stale1.txt", Extension: ".txt",
		Status: statestore.StatusProcessing,
	})
	require.NoError(t, err)

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	n, err := m.StaleSweep(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	time.Sleep(2 * time.Millisecond)
	n, err = m.StaleSweep(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := state.GetContentByDigest(ctx, "stale1")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusFailedProcess, rec.Status)
}

func TestStats_ReportsStatusCounts(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	for i, status := range []statestore.Status{statestore.StatusSynced, statestore.StatusSynced, statestore.StatusIndexed} {
		digest := "digest" + string(rune('0'+i))
		_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
			Digest: digest, ObjectKey: "objects/xx/yy/" + digest + ".txt", Extension: ".txt",
			Status: status,
		})
		require.NoError(t, err)
	}

	m := maintenance.New(maintenance.Config{State: state, Objects: objs})
	stats, err := m.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[statestore.StatusSynced])
	assert.Equal(t, 1, stats.ByStatus[statestore.StatusIndexed])
}
