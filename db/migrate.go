package db

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/version"
)

//go:embed sqlite/migrations/*.sql
var migrationFS embed.FS

const migrationDir = "sqlite/migrations"

// Migrate applies all pending schema migrations in filename order.
// Migration 000 bootstraps the schema_migrations ledger, so it sorts and
// runs first. Safe to call on an already-migrated database.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}
	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	ran := 0
	for _, name := range names {
		ver := strings.SplitN(name, "_", 2)[0]
		if applied[ver] {
			if log != nil {
				log.Debugw("migration already applied",
					logger.FieldMigration, name,
					logger.FieldVersion, ver,
				)
			}
			continue
		}
		if err := applyMigration(db, name, ver, log); err != nil {
			return err
		}
		ran++
	}

	if log != nil {
		log.Infow("migrations complete",
			logger.FieldCount, ran,
		)
	}
	return nil
}

// migrationNames lists the embedded migration files in apply order.
func migrationNames() ([]string, error) {
	entries, err := migrationFS.ReadDir(migrationDir)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read migrations"), errors.ErrStorage)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// appliedVersions reads the migration ledger. A missing ledger table means
// a fresh database where migration 000 has yet to create it.
func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return map[string]bool{}, nil
		}
		return nil, errors.Mark(errors.Wrap(err, "read migration ledger"), errors.ErrStorage)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var ver string
		if err := rows.Scan(&ver); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "scan migration ledger"), errors.ErrStorage)
		}
		applied[ver] = true
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "iterate migration ledger"), errors.ErrStorage)
	}
	return applied, nil
}

// applyMigration runs one migration file and records it in the ledger
// within the same transaction.
func applyMigration(db *sql.DB, name, ver string, log *zap.SugaredLogger) error {
	script, err := migrationFS.ReadFile(path.Join(migrationDir, name))
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "read migration %s", name), errors.ErrStorage)
	}

	if log != nil {
		log.Infow("applying migration",
			logger.FieldMigration, name,
			logger.FieldVersion, ver,
		)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "begin migration %s", name), errors.ErrStorage)
	}
	if _, err := tx.Exec(string(script)); err != nil {
		tx.Rollback()
		return errors.Mark(errors.Wrapf(err, "execute migration %s", name), errors.ErrStorage)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", ver); err != nil {
		tx.Rollback()
		return errors.Mark(errors.Wrapf(err, "record migration %s", name), errors.ErrStorage)
	}
	if err := tx.Commit(); err != nil {
		return errors.Mark(errors.Wrapf(err, "commit migration %s", name), errors.ErrStorage)
	}
	return nil
}

const schemaVersionKey = "schema_version"

// checkSchemaGeneration stamps a fresh store with this binary's schema
// generation and refuses to open a store stamped by an incompatible one.
func checkSchemaGeneration(db *sql.DB) error {
	var stored string
	err := db.QueryRow("SELECT value FROM store_meta WHERE key = ?", schemaVersionKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)",
			schemaVersionKey, version.SchemaVersion); err != nil {
			return errors.Mark(errors.Wrap(err, "record schema version"), errors.ErrStorage)
		}
		return nil
	}
	if err != nil {
		return errors.Mark(errors.Wrap(err, "read schema version"), errors.ErrStorage)
	}

	compatible, err := version.SchemaCompatible(stored)
	if err != nil {
		return err
	}
	if !compatible {
		return errors.Mark(
			errors.Newf("store written by schema generation %s, this build requires %s",
				stored, version.SchemaVersion),
			errors.ErrStorage)
	}
	return nil
}
