// Package testing provides testing utilities and helpers for the lottoscan project.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/lottoscan/internal/database"
)

// NewTestDB creates a file-backed SQLite database for testing with automatic schema migration.
// The database lives in the test's temporary directory and is closed when the test ends.
//
// Supported schema names:
//   - "records" - applies records_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()
	return NewTestDBWithDriver(t, name, database.DriverModernc)
}

// NewTestDBWithDriver is NewTestDB with an explicit SQL driver.
func NewTestDBWithDriver(t *testing.T, name, driver string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name))
	db, err := database.New(database.Config{
		Path:    path,
		Driver:  driver,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			// Log error but don't fail test - cleanup should be idempotent
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})
	return db
}
