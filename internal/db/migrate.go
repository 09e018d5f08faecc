package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/notifyhub/hermes-dispatch/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

// Migrate runs all pending up-migrations for the configured driver.
// It is idempotent: already-applied migrations are skipped.
func Migrate(cfg config.Database) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Rollback applies every down-migration, dropping the queue table.
func Rollback(cfg config.Database) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

func newMigrator(cfg config.Database) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations/"+cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	migrationURL, err := MigrationURL(cfg)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// MigrationURL rewrites a connection string into the scheme golang-migrate
// expects for the driver.
func MigrationURL(cfg config.Database) (string, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		// golang-migrate's pgx/v5 driver expects the scheme "pgx5://".
		// Support both "postgres://" and "postgresql://" connection string forms.
		var rest string
		switch {
		case strings.HasPrefix(cfg.DSN, "postgresql://"):
			rest = cfg.DSN[len("postgresql://"):]
		case strings.HasPrefix(cfg.DSN, "postgres://"):
			rest = cfg.DSN[len("postgres://"):]
		default:
			rest = cfg.DSN
		}
		return "pgx5://" + rest, nil
	case config.DriverMySQL:
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("parse mysql DSN: %w", err)
		}
		mc.MultiStatements = true
		return "mysql://" + mc.FormatDSN(), nil
	case config.DriverSQLite:
		return "sqlite3://" + cfg.DSN, nil
	default:
		return "", fmt.Errorf("migrate: unsupported driver %q", cfg.Driver)
	}
}
