//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/postgres"
)

var sharedContainer testcontainers.Container
var sharedCfg *postgres.Config

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "ingest_pipeline_test",
			"POSTGRES_USER":     "ingest_test",
			"POSTGRES_PASSWORD": "ingest_test",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("5432/tcp"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}
	sharedContainer = container

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")

	sharedCfg = &postgres.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "ingest_pipeline_test",
		User:        "ingest_test",
		Password:    "ingest_test",
		SSLMode:     "disable",
		AutoMigrate: true,
	}

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	store, err := postgres.New(context.Background(), sharedCfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_UpsertContent_FirstSuccessTimestampsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	rec, err := store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest:    "deadbeef",
		ObjectKey: "objects/de/ad/deadbeef.txt",
		Extension: ".txt",
		Status:    statestore.StatusSynced,
	})
	require.NoError(t, err)
	require.NotNil(t, rec.SyncedAt)
	firstSyncedAt := *rec.SyncedAt

	// Retrying the synced transition (e.g. a checkpoint replay) must not
	// move synced_at forward.
	time.Sleep(10 * time.Millisecond)
	rec, err = store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest:    "deadbeef",
		ObjectKey: "objects/de/ad/deadbeef.txt",
		Extension: ".txt",
		Status:    statestore.StatusSynced,
	})
	require.NoError(t, err)
	require.True(t, rec.SyncedAt.Equal(firstSyncedAt))
}

func TestStore_UpsertContent_FailureRecordsErrorAndIncrementsRetryCount(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "cafef00d", ObjectKey: "objects/ca/fe/cafef00d.pdf", Extension: ".pdf",
		Status: statestore.StatusProcessing,
	})
	require.NoError(t, err)

	rec, err := store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "cafef00d", Status: statestore.StatusFailedProcess,
		Err: ingesterr.New(ingesterr.EmptyContent, "no text extracted"),
	})
	require.NoError(t, err)
	require.Equal(t, statestore.StatusFailedProcess, rec.Status)
	require.Equal(t, "EmptyContent", rec.ErrorKind)
	require.Equal(t, 1, rec.RetryCount)

	// A subsequent success clears the error block but keeps retry_count.
	rec, err = store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "cafef00d", Status: statestore.StatusProcessed,
	})
	require.NoError(t, err)
	require.Empty(t, rec.ErrorMessage)
	require.Empty(t, rec.ErrorKind)
	require.Equal(t, 1, rec.RetryCount)
	require.NotNil(t, rec.ProcessedAt)
}

func TestStore_ContentDedup_TwoOriginsOneRecord(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "facefeed", ObjectKey: "objects/fa/ce/facefeed.txt", Extension: ".txt",
		Status: statestore.StatusSynced,
	})
	require.NoError(t, err)

	_, err = store.UpsertOriginMapping(ctx, statestore.UpsertOriginMappingInput{OriginID: "origin-1", Digest: "facefeed"})
	require.NoError(t, err)
	_, err = store.UpsertOriginMapping(ctx, statestore.UpsertOriginMappingInput{OriginID: "origin-2", Digest: "facefeed"})
	require.NoError(t, err)

	recByOrigin1, err := store.GetContentByOriginID(ctx, "origin-1")
	require.NoError(t, err)
	recByOrigin2, err := store.GetContentByOriginID(ctx, "origin-2")
	require.NoError(t, err)
	require.Equal(t, "facefeed", recByOrigin1.Digest)
	require.Equal(t, recByOrigin1.Digest, recByOrigin2.Digest)
}

func TestStore_MarkStaleFailed(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.UpsertContent(ctx, statestore.UpsertContentInput{
		Digest: "0ff1ce", ObjectKey: "objects/0f/f1/0ff1ce.pdf", Extension: ".pdf",
		Status: statestore.StatusProcessing,
	})
	require.NoError(t, err)

	n, err := store.MarkStaleFailed(ctx, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	rec, err := store.GetContentByDigest(ctx, "0ff1ce")
	require.NoError(t, err)
	require.Equal(t, statestore.StatusFailedProcess, rec.Status)
	require.Equal(t, "StaleProcessing", rec.ErrorKind)
}

func TestStore_Checkpoint_RoundTrips(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, ok, err := store.GetCheckpoint(ctx, statestore.DriveSyncLastModified)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.SetCheckpoint(ctx, statestore.DriveSyncLastModified, "2025-01-01T00:00:00Z"))

	value, ok, err := store.GetCheckpoint(ctx, statestore.DriveSyncLastModified)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2025-01-01T00:00:00Z", value)
}
