package db

import (
	"path/filepath"
	"testing"
)

// NewTestDB creates a migrated database in a temp directory. The database is
// closed when the test finishes.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}
