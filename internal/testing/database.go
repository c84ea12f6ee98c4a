// Package testing provides shared helpers for atomstore package tests.
package testing

import (
	"database/sql"
	"testing"

	"github.com/axiomata/atomstore/db"
)

// CreateTestDB creates an in-memory SQLite test database with the full
// atomstore schema applied and sqlite-vec available. Cleanup is registered
// via t.Cleanup().
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.OpenMemory(nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
	})

	if err := db.Migrate(conn, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return conn
}
