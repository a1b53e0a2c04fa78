package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/dlo-eval/internal/monitoring"
)

var logf = monitoring.Prefixed("db")

// DB wraps the sqlite handle holding evaluation runs.
type DB struct {
	*sql.DB
}

// pragmas applied to every connection we open.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// OpenDB opens the database and applies PRAGMAs without touching the schema.
func OpenDB(path string) (*DB, error) {
	// foreign_keys and busy_timeout are per connection; the DSN form applies
	// them to every connection the pool opens.
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the database and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	database, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		database.Close()
		return nil, err
	}
	if err := database.MigrateUp(migrationsFS); err != nil {
		database.Close()
		return nil, err
	}

	version, _, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		database.Close()
		return nil, err
	}
	logf("opened %s at schema version %d", path, version)
	return database, nil
}
