package database

import (
	"embed"
	stdlog "log"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func setupGoose(db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	dialect := "sqlite3"
	if db.DriverName() == DriverPostgres {
		dialect = "postgres"
	}
	return goose.SetDialect(dialect)
}

// Migrate applies every pending migration.
func Migrate(db *sqlx.DB) error {
	if err := setupGoose(db); err != nil {
		return err
	}
	return errors.Wrap(goose.Up(db.DB, migrationsDir), "apply migrations")
}

// Rollback reverts the most recent migration.
func Rollback(db *sqlx.DB) error {
	if err := setupGoose(db); err != nil {
		return err
	}
	return errors.Wrap(goose.Down(db.DB, migrationsDir), "rollback migration")
}

func MigrationStatus(db *sqlx.DB) error {
	if err := setupGoose(db); err != nil {
		return err
	}
	goose.SetLogger(stdlog.New(os.Stdout, "", 0))
	return goose.Status(db.DB, migrationsDir)
}
