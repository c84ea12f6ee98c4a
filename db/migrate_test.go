package db

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomata/atomstore/version"
)

func TestOpenWithMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"schema_migrations", "atoms", "embeddings", "provenance_edges", "store_meta"} {
		var count int
		err := db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist after migrations", table)
	}

	// A fresh store is stamped with this build's schema generation.
	var stored string
	require.NoError(t, db.QueryRow(
		"SELECT value FROM store_meta WHERE key = 'schema_version'").Scan(&stored))
	assert.Equal(t, version.SchemaVersion, stored)
}

func TestOpenRefusesIncompatibleSchemaGeneration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE store_meta SET value = '99.0.0' WHERE key = 'schema_version'")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = OpenWithMigrations(dbPath, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema generation")
}

func TestOpenAcceptsSameMajorSchemaGeneration(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	major := semver.MustParse(version.SchemaVersion).Major()
	_, err = db.Exec("UPDATE store_meta SET value = ? WHERE key = 'schema_version'",
		fmt.Sprintf("%d.999.0", major))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	assert.NoError(t, reopened.Close())
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := OpenWithMigrations(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	var before int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&before))
	assert.Greater(t, before, 0)

	// Running again applies nothing new.
	require.NoError(t, Migrate(db, nil))

	var after int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after))
	assert.Equal(t, before, after)
}

func TestSchemaConstraints(t *testing.T) {
	db, err := OpenMemory(nil)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db, nil))

	_, err = db.Exec("INSERT INTO atoms (content_hash, value) VALUES (?, ?)", []byte("hash-a"), []byte("v"))
	require.NoError(t, err)

	// Dedup invariant: second atom with the same hash violates the unique index.
	_, err = db.Exec("INSERT INTO atoms (content_hash, value) VALUES (?, ?)", []byte("hash-a"), []byte("v2"))
	assert.Error(t, err)

	// Self-loop edges are rejected by the CHECK constraint.
	_, err = db.Exec("INSERT INTO provenance_edges (source_id, target_id, relationship) VALUES (1, 1, 'derived-from')")
	assert.Error(t, err)

	// Edges must reference existing atoms.
	_, err = db.Exec("INSERT INTO provenance_edges (source_id, target_id, relationship) VALUES (1, 999, 'derived-from')")
	assert.Error(t, err)
}
