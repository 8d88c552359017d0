package orchestrator_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/extractstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/orchestrator"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/memory"
)

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

type fakeVector struct {
	mu    sync.Mutex
	count int
}

func (f *fakeVector) UploadFile(ctx context.Context, name string, r io.Reader) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return "file-" + name, nil
}

func (f *fakeVector) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	return nil
}

// TestOrchestrator_RunFull_SkipsSyncAndChainsExtractThenIndex exercises the
// self-healing rule: extract discovers every synced row on its own, and
// index discovers every processed row on its own, with no digest handed
// directly from one stage to the next.
func TestOrchestrator_RunFull_SkipsSyncAndChainsExtractThenIndex(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	const key = "objects/ab/cd/abcd.txt"
	objs.objs[key] = []byte("plenty of content to extract and index")
	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "abcd", ObjectKey: key, Extension: ".txt",
		Status: statestore.StatusSynced, OriginName: "notes.txt",
	})
	require.NoError(t, err)

	extract := extractstage.New(extractstage.Config{State: state, Objects: objs, Workers: 1})
	vec := &fakeVector{}
	index := indexstage.New(indexstage.Config{
		State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 1,
	})

	orch := orchestrator.New(orchestrator.Config{Extract: extract, Index: index})

	result, err := orch.RunFull(ctx, orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Extract.Examined)
	assert.Equal(t, 1, result.Index.Indexed)

	rec, err := state.GetContentByDigest(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusIndexed, rec.Status)
}

func TestOrchestrator_RunFull_StopsAtCancelledContextBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := memory.New()
	objs := newFakeObjects()
	extract := extractstage.New(extractstage.Config{State: state, Objects: objs, Workers: 1})
	vec := &fakeVector{}
	index := indexstage.New(indexstage.Config{State: state, Objects: objs, Vector: vec, VectorStoreID: "vs_1", Workers: 1})

	orch := orchestrator.New(orchestrator.Config{Extract: extract, Index: index})

	result, err := orch.RunFull(ctx, orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Extract.Examined)
	assert.Equal(t, 0, result.Index.Examined)
}

func TestOrchestrator_RunExtract_NilStageIsNoop(t *testing.T) {
	orch := orchestrator.New(orchestrator.Config{})
	result, err := orch.RunExtract(context.Background(), orchestrator.Options{})
	require.NoError(t, err)
	assert.Equal(t, extractstage.Result{}, result)
}
