package extractstage_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hasomerhacairhu/ingest-pipeline/pkg/extractstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/memory"
)

// fakeObjects is a minimal in-memory objectstore.Store, mirroring the one
// in pkg/syncstage's tests.
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
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objs[key]
	if !ok {
		return objectstore.ObjectInfo{}, objectstore.ErrNotFound
	}
	return objectstore.ObjectInfo{Size: int64(len(data))}, nil
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

func (f *fakeObjects) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objs[key]
	return ok
}

func TestLanguageHint_ManualHintWins(t *testing.T) {
	assert.Equal(t, []string{"pol"}, extractstage.LanguageHint("report_pol_2025.pdf"))
	assert.Equal(t, []string{"hun"}, extractstage.LanguageHint("kozlemeny.hun.docx"))
}

func TestLanguageHint_DefaultsToBilingual(t *testing.T) {
	assert.Equal(t, []string{"hun", "eng"}, extractstage.LanguageHint("minutes-2026-03.docx"))
}

func TestTesseractLanguageString(t *testing.T) {
	assert.Equal(t, "hun+eng", extractstage.TesseractLanguageString([]string{"hun", "eng"}))
}

func TestIsNativeTextAndPortablePage(t *testing.T) {
	assert.True(t, extractstage.IsNativeText(".docx"))
	assert.True(t, extractstage.IsNativeText(".TXT"))
	assert.False(t, extractstage.IsNativeText(".pdf"))
	assert.True(t, extractstage.IsPortablePage(".pdf"))
	assert.False(t, extractstage.IsPortablePage(".docx"))
}

func TestConcatenateTextAndPageCount(t *testing.T) {
	elements := []extractstage.Element{
		{Type: "NarrativeText", Text: "first page"},
		{Type: "PageBreak"},
		{Type: "NarrativeText", Text: "second page"},
	}
	assert.Equal(t, "first page\n\nsecond page", extractstage.ConcatenateText(elements))
	assert.Equal(t, 2, extractstage.PageCount(elements))
}

func TestStage_Run_NativeText_PlainTextFile(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	const key = "objects/ab/cd/abcd.txt"
	objs.objs[key] = []byte("hello world, this has real content.")

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "abcd", ObjectKey: key, Extension: ".txt",
		Status:     statestore.StatusSynced,
		OriginName: "notes.txt",
	})
	require.NoError(t, err)

	stage := extractstage.New(extractstage.Config{
		State: state, Objects: objs, Workers: 2, ChunkSize: 10,
	})

	result, err := stage.Run(ctx, extractstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, result.ByStrategy[extractstage.StrategyNative])

	rec, err := state.GetContentByDigest(ctx, "abcd")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusProcessed, rec.Status)
	assert.True(t, rec.TextLength > 0)

	assert.True(t, objs.has(objectstore.DerivativeKey("abcd", "elements.jsonl")))
	assert.True(t, objs.has(objectstore.DerivativeKey("abcd", "text.txt")))
	assert.True(t, objs.has(objectstore.DerivativeKey("abcd", "meta.json")))
}

func TestStage_Run_EmptyContentIsTerminal(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	const key = "objects/ab/cd/whitespace.txt"
	objs.objs[key] = []byte("   \n\n\t  ")

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "whitespace", ObjectKey: key, Extension: ".txt",
		Status: statestore.StatusSynced, OriginName: "blank.txt",
	})
	require.NoError(t, err)

	stage := extractstage.New(extractstage.Config{State: state, Objects: objs, Workers: 1})

	result, err := stage.Run(ctx, extractstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Empty)

	rec, err := state.GetContentByDigest(ctx, "whitespace")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusFailedProcess, rec.Status)
	assert.Equal(t, "EmptyContent", rec.ErrorKind)
}

func TestStage_Run_RetryFailedIncludesFailedProcessRows(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	const key = "objects/ff/ff/retry.txt"
	objs.objs[key] = []byte("now it has content.")

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "retryme", ObjectKey: key, Extension: ".txt",
		Status: statestore.StatusFailedProcess, OriginName: "retry.txt",
		Err: assertErr{},
	})
	require.NoError(t, err)

	stage := extractstage.New(extractstage.Config{State: state, Objects: objs, Workers: 1})

	result, err := stage.Run(ctx, extractstage.RunOptions{RetryFailed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)

	rec, err := state.GetContentByDigest(ctx, "retryme")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusProcessed, rec.Status)
	assert.Empty(t, rec.ErrorMessage)
}

func TestStage_Run_DryRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	const key = "objects/dd/dd/dry.txt"
	objs.objs[key] = []byte("dry run content")

	_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "dryrun", ObjectKey: key, Extension: ".txt",
		Status: statestore.StatusSynced, OriginName: "dry.txt",
	})
	require.NoError(t, err)

	stage := extractstage.New(extractstage.Config{State: state, Objects: objs, Workers: 1, DryRun: true})

	result, err := stage.Run(ctx, extractstage.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)

	rec, err := state.GetContentByDigest(ctx, "dryrun")
	require.NoError(t, err)
	assert.Equal(t, statestore.StatusSynced, rec.Status)
	assert.False(t, objs.has(objectstore.DerivativeKey("dryrun", "text.txt")))
}

func TestStage_Run_MaxFilesCapsWork(t *testing.T) {
	ctx := context.Background()
	state := memory.New()
	objs := newFakeObjects()

	for i := 0; i < 5; i++ {
		digest := string(rune('a' + i))
		key := "objects/" + digest + "/" + digest + "/f"
		objs.objs[key] = []byte("content-" + digest)
		_, err := state.UpsertContent(ctx, statestore.UpsertContentInput{
			Digest: digest, ObjectKey: key, Extension: ".txt",
			Status: statestore.StatusSynced, OriginName: digest + ".txt",
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	stage := extractstage.New(extractstage.Config{State: state, Objects: objs, Workers: 2})

	result, err := stage.Run(ctx, extractstage.RunOptions{MaxFiles: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Examined)
}

// assertErr is a throwaway non-nil error used purely to seed a
// failed_process row with an error block to verify gets cleared on retry.
type assertErr struct{}

func (assertErr) Error() string { return "seeded failure" }
