package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Migrate brings the switch history schema to the newest embedded version.
// A dirty schema is not touched.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	migrator, err := newMigrator(db, log)
	if err != nil {
		return err
	}

	before, err := cleanVersion(migrator)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debugw("switch history schema up to date", "version", before)
		return nil
	case err != nil:
		return fmt.Errorf("migrate history schema from version %d: %w", before, err)
	}

	after, err := cleanVersion(migrator)
	if err != nil {
		return err
	}
	log.Infow("switch history schema migrated", "from", before, "to", after)

	return nil
}

// Version reports the applied schema version, 0 before the first migration.
func Version(db *sql.DB) (uint, error) {
	migrator, err := newMigrator(db, zap.NewNop().Sugar())
	if err != nil {
		return 0, err
	}
	return cleanVersion(migrator)
}

func newMigrator(db *sql.DB, log *zap.SugaredLogger) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(files, ".")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	migrator.Log = migrateLogger{log: log.Named("migrate")}

	return migrator, nil
}

func cleanVersion(migrator *migrate.Migrate) (uint, error) {
	version, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("read history schema version: %w", err)
	case dirty:
		return version, fmt.Errorf("history schema version %d is dirty", version)
	}
	return version, nil
}

// migrateLogger sends golang-migrate's progress lines to zap at debug level.
type migrateLogger struct {
	log *zap.SugaredLogger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.log.Desugar().Core().Enabled(zap.DebugLevel)
}
