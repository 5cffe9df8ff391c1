package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arborhq/arbor/internal/logger"
	"github.com/arborhq/arbor/pkg/directory"
	"github.com/arborhq/arbor/pkg/store/folder/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run directory and folder store schema migrations",
	Long: `Apply pending schema migrations to the principal directory
database and the configured PostgreSQL folder store. Required after
upgrading arbor when schema changes have been made. The memory and
badger folder backends need no migrations.

Examples:
  # Run migrations with default config
  arbor migrate

  # Run migrations with custom config
  arbor migrate --config /etc/arbor/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Migrating directory schema", "type", cfg.Directory.Type)

	// Opening the directory store runs its schema migration.
	dir, err := directory.NewStore(cfg.Directory)
	if err != nil {
		return fmt.Errorf("directory migration failed: %w", err)
	}
	if err := dir.Close(); err != nil {
		return fmt.Errorf("close directory store: %w", err)
	}

	if cfg.Store.Backend != "postgres" {
		fmt.Printf("Directory schema migrated; folder store needs no migrations (backend: %s)\n", cfg.Store.Backend)
		return nil
	}

	logger.Info("Running folder store migrations", "database", cfg.Store.Postgres.Database)

	if err := postgres.Migrate(cmd.Context(), cfg.Store.Postgres, logger.Get()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
