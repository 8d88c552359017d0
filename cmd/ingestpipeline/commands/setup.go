package commands

import (
	"context"
	"fmt"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/config"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/drive/google"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/indexstage/openai"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/maintenance"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/objectstore/s3"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/postgres"
)

// deps is the composition root: the live stores every subcommand is built
// from. Each subcommand constructs only the adapters it actually needs
// (e.g. stats never touches Drive or the vector service).
type deps struct {
	cfg     *config.Config
	state   *postgres.Store
	objects objectstore.Store
}

// buildCoreDeps opens the state store and object store every subcommand
// depends on.
func buildCoreDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	state, err := postgres.New(ctx, &cfg.StateStore)
	if err != nil {
		return nil, fmt.Errorf("connect state store: %w", err)
	}

	client, err := s3.NewClientFromConfig(ctx,
		cfg.ObjectStore.Endpoint, cfg.ObjectStore.Region,
		cfg.ObjectStore.AccessKeyID, cfg.ObjectStore.SecretAccessKey,
		cfg.ObjectStore.ForcePathStyle)
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("build object store client: %w", err)
	}

	objects, err := s3.New(ctx, s3.Config{
		Client:            client,
		Bucket:            cfg.ObjectStore.Bucket,
		KeyPrefix:         cfg.ObjectStore.KeyPrefix,
		MaxRetries:        cfg.ObjectStore.MaxRetries,
		InitialBackoff:    cfg.ObjectStore.InitialBackoff,
		MaxBackoff:        cfg.ObjectStore.MaxBackoff,
		BackoffMultiplier: cfg.ObjectStore.BackoffMultiplier,
	})
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	return &deps{cfg: cfg, state: state, objects: objects}, nil
}

// Close releases the underlying connections.
func (d *deps) Close() {
	if d.state != nil {
		_ = d.state.Close()
	}
}

// buildDrive constructs the Drive adapter. Only the sync and full
// subcommands need it.
func (d *deps) buildDrive(ctx context.Context) (drive.Store, error) {
	store, err := google.New(ctx, &d.cfg.Drive)
	if err != nil {
		return nil, fmt.Errorf("connect drive: %w", err)
	}
	return store, nil
}

// buildVector constructs the vector-search adapter. Only the index and
// full subcommands need it.
func (d *deps) buildVector() indexstage.VectorService {
	return openai.NewFromConfig(d.cfg.Vector)
}

// buildMaintenance constructs the maintenance surface used by migrate,
// stats, and cleanup.
func (d *deps) buildMaintenance() *maintenance.Maintenance {
	return maintenance.New(maintenance.Config{State: d.state, Objects: d.objects})
}
