package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies all pending embedded migrations for the DB's dialect.
// Already-applied migrations are skipped, so it runs on every startup.
//
// The migrate drivers hold a dedicated connection until closed, so Migrate
// runs on its own single-connection handle and leaves the DB's pools alone.
func Migrate(db *DB) (err error) {
	if db.dsn == "" {
		return errors.New("migrate: database was not opened with OpenPostgres or OpenSQLite")
	}
	conn, err := sql.Open(db.driver, db.dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	conn.SetMaxOpenConns(1)
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close migration connection: %w", cerr)
		}
	}()

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+db.Dialect.String())
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var (
		dbDriver migratedb.Driver
		name     string
	)
	switch db.Dialect {
	case SQLite:
		dbDriver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
		name = "sqlite"
	default:
		dbDriver, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
		name = "pgx5"
	}
	if err != nil {
		_ = sourceDriver.Close()
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, name, dbDriver)
	if err != nil {
		_ = sourceDriver.Close()
		_ = dbDriver.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err == nil {
			err = errors.Join(srcErr, dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
