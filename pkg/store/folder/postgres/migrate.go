package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql

	"github.com/arborhq/arbor/pkg/store/folder/postgres/migrations"
)

// runMigrations executes schema migrations using golang-migrate.
// golang-migrate takes PostgreSQL advisory locks, so concurrent instances
// racing startup are safe.
func runMigrations(ctx context.Context, config Config, logger *slog.Logger) error {
	logger.Info("Running folder store migrations...")

	// golang-migrate requires database/sql
	db, err := sql.Open("pgx", config.ConnString())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "folder_schema_migrations",
		DatabaseName:    config.Database,
	})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err == migrate.ErrNoChange {
		logger.Info("No migrations to apply (schema is up to date)")
	} else {
		logger.Info("Migrations completed")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("read migration version: %w", err)
	}
	logger.Info("Folder store schema", "version", version, "dirty", dirty)
	return nil
}

// Migrate runs pending migrations without opening a pool, for the CLI.
func Migrate(ctx context.Context, config Config, logger *slog.Logger) error {
	config.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return runMigrations(ctx, config, logger)
}
