package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hasomerhacairhu/ingest-pipeline/internal/logger"
	"github.com/hasomerhacairhu/ingest-pipeline/pkg/statestore/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Backfill state records from the legacy marker layout",
	Long: `Walk the object store's legacy marker prefixes and create a
ContentRecord for any digest the state store doesn't already track:
indexed/ markers become indexed records, derivative bundles (meta.json)
become processed records, and failed/ markers become failed_process
records, so content the previous system handled isn't reprocessed from
scratch.

The state store's own schema migrations are applied first if auto_migrate
hasn't already run them on connect.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cfg, _, shutdown, err := bootstrap()
	if err != nil {
		return err
	}
	defer shutdown()

	if !cfg.StateStore.AutoMigrate {
		if err := postgres.RunMigrations(ctx, &cfg.StateStore); err != nil {
			return err
		}
	}

	d, err := buildCoreDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	result, err := d.buildMaintenance().MigrateLegacyMarkers(ctx)
	if err != nil {
		return err
	}

	logger.InfoCtx(ctx, "legacy marker migration finished",
		"markers_seen", result.MarkersSeen,
		"migrated", result.Migrated,
		"already_tracked", result.AlreadyTracked,
		"object_missing", result.ObjectMissing)
	fmt.Printf("migrate: markers_seen=%d migrated=%d already_tracked=%d object_missing=%d\n",
		result.MarkersSeen, result.Migrated, result.AlreadyTracked, result.ObjectMissing)
	return nil
}
