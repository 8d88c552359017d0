package postgres

import (
	"context"
	"time"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/telemetry"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

var allStatuses = []statestore.Status{
	statestore.StatusSynced,
	statestore.StatusProcessing,
	statestore.StatusProcessed,
	statestore.StatusIndexing,
	statestore.StatusIndexed,
	statestore.StatusFailedSync,
	statestore.StatusFailedProcess,
	statestore.StatusFailedIndex,
}

// Statistics reports counts per status plus totals, cached for
// config.StatsCacheTTL to keep the `stats` CLI subcommand and any future
// monitoring endpoint cheap under repeated polling.
func (s *Store) Statistics(ctx context.Context) (statestore.Statistics, error) {
	s.stats.mu.RLock()
	if s.stats.valid && time.Since(s.stats.at) < s.stats.ttl {
		cached := s.stats.value
		s.stats.mu.RUnlock()
		return cached, nil
	}
	s.stats.mu.RUnlock()

	ctx, span := telemetry.StartStateStoreSpan(ctx, "statistics")
	defer span.End()

	acquireCtx, cancel := s.acquireCtx(ctx)
	defer cancel()

	rows, err := s.pool.Query(acquireCtx, `
		SELECT status, count(*) FROM content_records GROUP BY status`)
	if err != nil {
		return statestore.Statistics{}, mapPgError(err, "statistics")
	}

	byStatus := make(map[statestore.Status]int, len(allStatuses))
	for _, st := range allStatuses {
		byStatus[st] = 0
	}

	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return statestore.Statistics{}, mapPgError(err, "statistics")
		}
		byStatus[statestore.Status(status)] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return statestore.Statistics{}, mapPgError(err, "statistics")
	}
	rows.Close()

	withErrors := 0
	if err := s.pool.QueryRow(acquireCtx,
		`SELECT count(*) FROM content_records WHERE error_message != ''`,
	).Scan(&withErrors); err != nil {
		return statestore.Statistics{}, mapPgError(err, "statistics")
	}

	result := statestore.Statistics{
		Total:      total,
		WithErrors: withErrors,
		ByStatus:   byStatus,
	}

	s.stats.mu.Lock()
	s.stats.value = result
	s.stats.at = time.Now()
	s.stats.valid = true
	s.stats.mu.Unlock()

	return result, nil
}
