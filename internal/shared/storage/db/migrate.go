package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"iprisk-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// MigrateCommand selects what Migrate does with the embedded schema.
type MigrateCommand string

const (
	MigrateUp      MigrateCommand = "up"
	MigrateDown    MigrateCommand = "down"
	MigrateStatus  MigrateCommand = "status"
	MigrateVersion MigrateCommand = "version"
)

var gooseOnce sync.Once
var gooseErr error

func setupGoose() error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrationFiles)
		gooseErr = goose.SetDialect("postgres")
	})
	return gooseErr
}

// RunMigrations applies every pending migration. A nil database is a no-op.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	return Migrate(ctx, database, MigrateUp)
}

// Migrate runs cmd against the analysis schema. Down rolls back one version.
func Migrate(ctx context.Context, database *sql.DB, cmd MigrateCommand) error {
	if database == nil {
		return nil
	}
	if err := setupGoose(); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	var err error
	switch cmd {
	case MigrateUp, "":
		err = goose.UpContext(ctx, database, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, database, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, database, migrationsDir)
	case MigrateVersion:
		var version int64
		version, err = goose.GetDBVersionContext(ctx, database)
		if err == nil {
			telemetry.Info("db.schema_version", map[string]any{"version": version})
		}
	default:
		return fmt.Errorf("unknown migrate command %q", cmd)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cmd, err)
	}
	return nil
}
