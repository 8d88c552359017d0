package syncstage_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/memory"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/syncstage"
)

// fakeDrive serves a fixed, in-memory set of items and contents.
type fakeDrive struct {
	items   []drive.Item
	content map[string][]byte
}

func (f *fakeDrive) Enumerate(ctx context.Context, rootID string, modifiedAfter *time.Time) (drive.ItemIterator, error) {
	var out []drive.Item
	for _, it := range f.items {
		if modifiedAfter != nil && !it.ModifiedAt.After(*modifiedAfter) {
			continue
		}
		out = append(out, it)
	}
	return &fakeIterator{items: out}, nil
}

func (f *fakeDrive) Fetch(ctx context.Context, item drive.Item) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.content[item.OriginID])), nil
}

type fakeIterator struct {
	items []drive.Item
	idx   int
	cur   drive.Item
}

func (it *fakeIterator) Next(ctx context.Context) bool {
	if it.idx >= len(it.items) {
		return false
	}
	it.cur = it.items[it.idx]
	it.idx++
	return true
}
func (it *fakeIterator) Item() drive.Item { return it.cur }
func (it *fakeIterator) Err() error       { return nil }

// fakeObjects is a minimal in-memory objectstore.Store.
type fakeObjects struct {
	mu   sync.Mutex
	objs map[string]fakeObj
}

type fakeObj struct {
	data []byte
	ct   string
	meta objectstore.Metadata
}

func newFakeObjects() *fakeObjects { return &fakeObjects{objs: map[string]fakeObj{}} }

func (f *fakeObjects) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objs[key]
	return ok, nil
}

func (f *fakeObjects) Head(ctx context.Context, key string) (objectstore.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objs[key]
	if !ok {
		return objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	return objectstore.ObjectInfo{ContentType: o.ct, Metadata: o.meta, Size: int64(len(o.data))}, nil
}

func (f *fakeObjects) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objs[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), nil
}

func (f *fakeObjects) Put(ctx context.Context, key string, body io.Reader, contentType string, meta objectstore.Metadata) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objs[key] = fakeObj{data: data, ct: contentType, meta: meta}
	return nil
}

func (f *fakeObjects) ReplaceMetadata(ctx context.Context, key string, meta objectstore.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objs[key]
	if !ok {
		return objectstore.ErrNotFound
	}
	o.meta = meta
	f.objs[key] = o
	return nil
}

func (f *fakeObjects) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objs, key)
	return nil
}

func (f *fakeObjects) List(ctx context.Context, prefix string) (objectstore.KeyIterator, error) {
	return nil, nil
}

func (f *fakeObjects) ListVersions(ctx context.Context, prefix string) (objectstore.VersionIterator, error) {
	return nil, nil
}

func TestSyncStage_NewUpload(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	d := &fakeDrive{
		items: []drive.Item{
			{OriginID: "f1", Name: "report.pdf", Path: "report.pdf", MIME: "application/pdf", ModifiedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		content: map[string][]byte{"f1": []byte("hello world")},
	}

	stage := syncstage.New(syncstage.Config{
		RootFolderID:  "root",
		SharedDrive:   d,
		SharedObjects: objs,
		State:         state,
		Workers:       2,
	})

	result, err := stage.Run(ctx, syncstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.NewUploads)
	assert.True(t, result.CheckpointSet)

	rec, err := state.GetContentByOriginID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusSynced, rec.Status)
}

func TestSyncStage_SecondRunSkipsUnchangedOrigin(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	d := &fakeDrive{
		items: []drive.Item{
			{OriginID: "f1", Name: "report.pdf", Path: "report.pdf", MIME: "application/pdf", ModifiedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
		content: map[string][]byte{"f1": []byte("hello world")},
	}

	stage := syncstage.New(syncstage.Config{
		RootFolderID: "root", SharedDrive: d, SharedObjects: objs, State: state, Workers: 2,
	})

	_, err := stage.Run(ctx, syncstage.RunOptions{})
	require.NoError(t, err)

	result, err := stage.Run(ctx, syncstage.RunOptions{ForceFullSync: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.NewUploads)
}

func TestSyncStage_DedupeLinkForIdenticalContentUnderNewOrigin(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	d := &fakeDrive{
		items: []drive.Item{
			{OriginID: "f1", Name: "a.txt", Path: "a.txt", MIME: "text/plain", ModifiedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
			{OriginID: "f2", Name: "copy-of-a.txt", Path: "copy-of-a.txt", MIME: "text/plain", ModifiedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)},
		},
		content: map[string][]byte{"f1": []byte("same bytes"), "f2": []byte("same bytes")},
	}

	stage := syncstage.New(syncstage.Config{
		RootFolderID: "root", SharedDrive: d, SharedObjects: objs, State: state, Workers: 1,
	})

	result, err := stage.Run(ctx, syncstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewUploads)
	assert.Equal(t, 1, result.DedupeLinked)

	rec1, err := state.GetContentByOriginID(ctx, "f1")
	require.NoError(t, err)
	rec2, err := state.GetContentByOriginID(ctx, "f2")
	require.NoError(t, err)
	assert.Equal(t, rec1.Digest, rec2.Digest)
}

func TestSyncStage_MaxNewUploadsCapsStateChangingWorkOnly(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	items := make([]drive.Item, 0, 5)
	content := map[string][]byte{}
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		items = append(items, drive.Item{
			OriginID: id, Name: id + ".txt", Path: id + ".txt", MIME: "text/plain",
			ModifiedAt: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
		})
		content[id] = []byte("distinct-" + id)
	}

	d := &fakeDrive{items: items, content: content}
	stage := syncstage.New(syncstage.Config{
		RootFolderID: "root", SharedDrive: d, SharedObjects: objs, State: state, Workers: 1,
	})

	result, err := stage.Run(ctx, syncstage.RunOptions{MaxNewUploads: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewUploads)
	assert.LessOrEqual(t, result.Examined, 5)
}
