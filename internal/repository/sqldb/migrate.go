package sqldb

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sakif/elibrary/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date without keeping a pool open and
// reports the resulting schema version. The `elibrary migrate` command uses
// it; Open runs the same steps before handing out a pool.
func Migrate(driver, dsn string) (uint, error) {
	dsn, err := prepareDSN(driver, dsn)
	if err != nil {
		return 0, err
	}
	return migrateUp(driver, dsn)
}

func migrateUp(driver, dsn string) (uint, error) {
	m, conn, err := newMigrator(driver, dsn)
	if err != nil {
		return 0, err
	}
	defer closeMigrator(m, conn)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("sqldb: running migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("sqldb: reading schema version: %w", err)
	}
	return version, nil
}

// newMigrator opens a dedicated connection for golang-migrate. The migrate
// drivers close the *sql.DB they are given, so it must not be the pool the
// repositories use.
func newMigrator(driver, dsn string) (*migrate.Migrate, *sql.DB, error) {
	dir := "migrations/sqlite"
	if driver == config.DriverPostgres {
		dir = "migrations/postgres"
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("sqldb: loading migrations: %w", err)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqldb: opening migration connection: %w", err)
	}

	var m *migrate.Migrate
	switch driver {
	case config.DriverSQLite:
		inst, ierr := migratesqlite.WithInstance(conn, &migratesqlite.Config{})
		if ierr != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("sqldb: preparing sqlite migrator: %w", ierr)
		}
		m, err = migrate.NewWithInstance("iofs", source, "sqlite", inst)
	case config.DriverPostgres:
		inst, ierr := migratepgx.WithInstance(conn, &migratepgx.Config{})
		if ierr != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("sqldb: preparing postgres migrator: %w", ierr)
		}
		m, err = migrate.NewWithInstance("iofs", source, "pgx5", inst)
	default:
		conn.Close()
		return nil, nil, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("sqldb: creating migrator: %w", err)
	}

	return m, conn, nil
}

func closeMigrator(m *migrate.Migrate, conn *sql.DB) {
	m.Close()
	conn.Close()
}
