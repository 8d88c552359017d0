// Package postgres implements pkg/statestore.Store on top of PostgreSQL via
// pgx, following the same connection-pool, transactional, and migration
// idioms throughout.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore"
)

// poolAcquireTimeout bounds how long an operation waits for a connection
// before reporting the pool as exhausted rather than hanging indefinitely.
const poolAcquireTimeout = 10 * time.Second

var _ statestore.Store = (*Store)(nil)

// Store implements statestore.Store against PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config *Config
	log    *slog.Logger

	stats statsCache
}

type statsCache struct {
	mu    sync.RWMutex
	value statestore.Statistics
	at    time.Time
	ttl   time.Duration
	valid bool
}

// New creates a PostgreSQL-backed state store, verifying connectivity and
// optionally running migrations when cfg.AutoMigrate is set.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	cfg.ApplyDefaults()

	log := logger.With("component", "statestore_postgres")

	pool, err := createConnectionPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if cfg.AutoMigrate {
		log.Info("auto_migrate enabled, applying state store migrations")
		if err := runMigrations(ctx, cfg.ConnectionString(), log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	} else {
		log.Info("auto_migrate disabled, skipping migrations (run `ingestpipeline migrate`)")
	}

	return &Store{
		pool:   pool,
		config: cfg,
		log:    log,
		stats:  statsCache{ttl: cfg.StatsCacheTTL},
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	closeConnectionPool(s.pool, s.log)
	return nil
}

func (s *Store) acquireCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, poolAcquireTimeout)
}

func (s *Store) invalidateStats() {
	s.stats.mu.Lock()
	s.stats.valid = false
	s.stats.mu.Unlock()
}
