package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedded embed.FS

// migrationSource reads the embedded schema unless dir overrides it.
func migrationSource(dir string) (source.Driver, string, error) {
	if dir != "" {
		drv, err := source.Open("file://" + dir)
		return drv, "file", err
	}
	drv, err := iofs.New(embedded, "migrations")
	return drv, "iofs", err
}

// RunMigrations brings the schema up to the newest version. A dirty schema
// is reported rather than forced.
func RunMigrations(databaseURL, dir string, log *zap.Logger) error {
	src, srcName, err := migrationSource(dir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	driver, err := postgres.WithInstance(conn, &postgres.Config{MigrationsTable: "teamfund_schema_migrations"})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}
	m, err := migrate.NewWithInstance(srcName, src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		return fmt.Errorf("schema is dirty at version %d", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	to, _, _ := m.Version()
	log.Info("schema up to date", zap.Uint("from_version", from), zap.Uint("version", to), zap.String("source", srcName))
	return nil
}
