// Package maintenance implements the operational surface that keeps
// the state store consistent across the previous system's data, unclean
// shutdowns, and day-to-day operational visibility — legacy-marker
// migration, the stale-processing sweep, and the statistics dump the
// `stats` and `cleanup` CLI subcommands expose.
package maintenance

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/ingesterr"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// DefaultStaleThreshold is how long a record may sit in processing or
// indexing before the sweep considers the worker that owned it dead.
const DefaultStaleThreshold = 24 * time.Hour

// Config wires maintenance operations to the stores they read and repair.
type Config struct {
	State   statestore.Store
	Objects objectstore.Store
}

// Maintenance groups the operational, non-pipeline-stage tasks that keep
// the state store healthy.
type Maintenance struct {
	cfg Config
}

// New constructs a Maintenance from cfg.
func New(cfg Config) *Maintenance {
	return &Maintenance{cfg: cfg}
}

// MigrationResult tallies one MigrateLegacyMarkers invocation.
type MigrationResult struct {
	// MarkersSeen is the total number of legacy markers found across the
	// indexed/, derivatives/, and failed/ prefixes.
	MarkersSeen int
	// Migrated is the number of digests newly recorded in the state store.
	Migrated int
	// AlreadyTracked is the number of digests the state store already had
	// a record for, left untouched.
	AlreadyTracked int
	// ObjectMissing is the number of digests whose primary object could
	// not be located in the object store, so no record could be built.
	ObjectMissing int
}

// legacyScans describes the marker layouts the pre-pipeline system left
// behind, in precedence order: an indexed/ marker means the digest was
// fully indexed, a derivative bundle's meta.json means it reached at
// least processed, and a failed/ marker means extraction failed. A digest
// seen by more than one scan resolves to the first (furthest) state.
var legacyScans = []struct {
	prefix string
	decode func(string) (string, bool)
	status statestore.Status
}{
	{"indexed/", objectstore.DigestFromLegacyIndexedKey, statestore.StatusIndexed},
	{"derivatives/", objectstore.DigestFromDerivativeMetaKey, statestore.StatusProcessed},
	{"failed/", objectstore.DigestFromLegacyFailedKey, statestore.StatusFailedProcess},
}

// MigrateLegacyMarkers backfills ContentRecords from the legacy marker
// layout so content the previous system already handled isn't reprocessed
// from scratch. The scans are read-only: nothing in the running pipeline
// writes those keys anymore, and migration never deletes them, since the
// old system may still be consulting them during a phased cutover.
func (m *Maintenance) MigrateLegacyMarkers(ctx context.Context) (MigrationResult, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanMaintenanceMigrate, "")
	defer span.End()

	log := logger.With("component", "maintenance", "op", "migrate_legacy_markers")

	var result MigrationResult
	resolved := map[string]statestore.Status{}
	var order []string

	for _, scan := range legacyScans {
		iter, err := m.cfg.Objects.List(ctx, scan.prefix)
		if err != nil {
			return result, err
		}
		for iter.Next(ctx) {
			digest, ok := scan.decode(iter.Key())
			if !ok {
				continue
			}
			result.MarkersSeen++
			if _, claimed := resolved[digest]; !claimed {
				resolved[digest] = scan.status
				order = append(order, digest)
			}
		}
		if err := iter.Err(); err != nil {
			return result, err
		}
	}

	for _, digest := range order {
		if err := m.migrateOne(ctx, digest, resolved[digest], &result); err != nil {
			return result, err
		}
	}

	log.Info("legacy marker migration complete",
		"markers_seen", result.MarkersSeen,
		"migrated", result.Migrated,
		"already_tracked", result.AlreadyTracked,
		"object_missing", result.ObjectMissing)
	return result, nil
}

func (m *Maintenance) migrateOne(ctx context.Context, digest string, status statestore.Status, result *MigrationResult) error {
	if _, err := m.cfg.State.GetContentByDigest(ctx, digest); err == nil {
		result.AlreadyTracked++
		return nil
	} else if !isNotFound(err) {
		return err
	}

	objectKey, ext, ok, err := m.locatePrimaryObject(ctx, digest)
	if err != nil {
		return err
	}
	if !ok {
		result.ObjectMissing++
		return nil
	}

	in := statestore.UpsertContentInput{
		Digest:    digest,
		ObjectKey: objectKey,
		Extension: ext,
		Status:    status,
	}
	if status == statestore.StatusFailedProcess {
		in.Err = ingesterr.New(ingesterr.Permanent, m.readFailedMarker(ctx, digest))
	}

	if _, err := m.cfg.State.UpsertContent(ctx, in); err != nil {
		return err
	}
	result.Migrated++
	return nil
}

// readFailedMarker returns the legacy failed marker's text, which the old
// system wrote as the failure reason, falling back to a fixed message when
// the blob is unreadable or empty.
func (m *Maintenance) readFailedMarker(ctx context.Context, digest string) string {
	body, err := m.cfg.Objects.Get(ctx, objectstore.LegacyFailedMarkerKey(digest))
	if err != nil {
		return "legacy failure marker"
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "legacy failure marker"
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return "legacy failure marker"
}

// locatePrimaryObject finds the CAS object key for digest by listing its
// two-level shard prefix, since the legacy marker layout carries no
// extension information of its own.
func (m *Maintenance) locatePrimaryObject(ctx context.Context, digest string) (key, ext string, ok bool, err error) {
	prefix := objectstore.DerivativePrefix(digest)
	prefix = strings.TrimSuffix(prefix, digest+"/")
	prefix = strings.Replace(prefix, "derivatives/", "objects/", 1)

	iter, err := m.cfg.Objects.List(ctx, prefix)
	if err != nil {
		return "", "", false, err
	}
	for iter.Next(ctx) {
		candidate := iter.Key()
		base := candidate[strings.LastIndex(candidate, "/")+1:]
		if !strings.HasPrefix(base, digest) {
			continue
		}
		return candidate, strings.TrimPrefix(base, digest), true, iter.Err()
	}
	return "", "", false, iter.Err()
}

func isNotFound(err error) bool {
	return errors.Is(err, statestore.ErrNotFound)
}

// StaleSweep transitions any record stuck in processing or indexing for
// longer than maxAge into its corresponding failed_* state, so the next
// extract or index run picks it back up via --retry-failed. This is what
// repairs an unclean shutdown that left a row mid-transition; a clean
// shutdown never leaves one.
func (m *Maintenance) StaleSweep(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx, span := telemetry.StartStageSpan(ctx, telemetry.SpanMaintenanceSweep, "")
	defer span.End()

	if maxAge <= 0 {
		maxAge = DefaultStaleThreshold
	}

	n, err := m.cfg.State.MarkStaleFailed(ctx, maxAge)
	if err != nil {
		return 0, err
	}

	logger.With("component", "maintenance", "op", "stale_sweep").
		Info("stale sweep complete", "transitioned", n, "max_age", maxAge.String())
	return n, nil
}

// Stats reports per-status counts for operational visibility.
func (m *Maintenance) Stats(ctx context.Context) (statestore.Statistics, error) {
	return m.cfg.State.Statistics(ctx)
}
