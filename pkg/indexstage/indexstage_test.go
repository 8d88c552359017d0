package indexstage_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/memory"
)

// fakeObjects is a minimal in-memory objectstore.Store.
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
	return nil, nil
}

func (f *fakeObjects) ListVersions(ctx context.Context, prefix string) (objectstore.VersionIterator, error) {
	return nil, nil
}

// fakeVector is a scripted indexstage.VectorService: it can fail a fixed
// number of times with a transient error before succeeding, or fail
// permanently, to exercise the retry policy. Each transient failure
// waits out one real backoff interval (about 1s, then 2s, with jitter).
type fakeVector struct {
	mu sync.Mutex

	uploadFailures int
	attachFailures int
	permanent      bool

	uploads  int
	attaches int
}

func (f *fakeVector) UploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.uploadFailures > 0 {
		f.uploadFailures--
		if f.permanent {
			return "", ingesterr.PermanentErr("upload", nil)
		}
		return "", ingesterr.Transient("upload", nil)
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return "file-" + name, nil
}

func (f *fakeVector) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attaches++
	if f.attachFailures > 0 {
		f.attachFailures--
		if f.permanent {
			return ingesterr.PermanentErr("attach", nil)
		}
		return ingesterr.Transient("attach", nil)
	}
	return nil
}

func seedProcessedRecord(t *testing.T, ctx context.Context, state statestore.Store, objs *fakeObjects, digest string) {
	t.Helper()
	key := objectstore.DerivativeKey(digest, "text.txt")
	objs.objs[key] = []byte("derivative text for " + digest)

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: digest, ObjectKey: "objects/xx/yy/" + digest, Extension: ".txt",
		Status: statestore.StatusProcessed, OriginName: digest + ".txt",
	})
	require.NoError(t, err)
}

func TestIndexStage_Run_IndexesProcessedRecord(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()
	seedProcessedRecord(t, ctx, state, objs, "abcd")

	vec := &fakeVector{}
	stage := indexstage.New(indexstage.Config{
		State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 2,
	})

	result, err := stage.Run(ctx, indexstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 0, result.Failed)

	rec, err := state.GetContentByDigest(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusIndexed, rec.Status)
	assert.Equal(t, "file-abcd.txt", rec.VectorFileID)
	assert.Equal(t, "vs_1", rec.VectorStoreID)
}

func TestIndexStage_Run_RetriesTransientUploadFailure(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()
	seedProcessedRecord(t, ctx, state, objs, "retryme")

	vec := &fakeVector{uploadFailures: 2}
	stage := indexstage.New(indexstage.Config{
		State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 1,
	})

	result, err := stage.Run(ctx, indexstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 3, vec.uploads)
}

func TestIndexStage_Run_PermanentUploadFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()
	seedProcessedRecord(t, ctx, state, objs, "deadend")

	vec := &fakeVector{uploadFailures: 1, permanent: true}
	stage := indexstage.New(indexstage.Config{
		State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 1,
	})

	result, err := stage.Run(ctx, indexstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, vec.uploads)

	rec, err := state.GetContentByDigest(ctx, "deadend")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusFailedIndex, rec.Status)
}

func TestIndexStage_Run_RetryFailedIncludesFailedIndexRows(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	key := objectstore.DerivativeKey("wasfailed", "text.txt")
	objs.objs[key] = []byte("text")
	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "wasfailed", ObjectKey: "objects/a/b/wasfailed", Extension: ".txt",
		Status: statestore.StatusFailedIndex, OriginName: "wasfailed.txt",
		Err: ingesterr.PermanentErr("prior failure", nil),
	})
	require.NoError(t, err)

	vec := &fakeVector{}
	stage := indexstage.New(indexstage.Config{
		State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 1,
	})

	result, err := stage.Run(ctx, indexstage.RunOptions{RetryFailed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 1, result.Indexed)
}

func TestIndexStage_Run_DryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()
	seedProcessedRecord(t, ctx, state, objs, "dryrun")

	vec := &fakeVector{}
	stage := indexstage.New(indexstage.Config{
		State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 1, DryRun: true,
	})

	result, err := stage.Run(ctx, indexstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)

	rec, err := state.GetContentByDigest(ctx, "dryrun")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusProcessed, rec.Status)
	assert.Equal(t, 0, vec.uploads)
}
