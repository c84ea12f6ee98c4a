// Package db opens and migrates the SQLite database backing the store.
package db

import (
	"database/sql"
	"fmt"
	"sync"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/axiomata/atomstore/errors"
)

var registerVecOnce sync.Once

// SQLiteBusyTimeoutMS is how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
const SQLiteBusyTimeoutMS = 5000

// Open opens a SQLite database at the specified path with WAL mode, foreign
// keys and a busy timeout, and with the sqlite-vec extension available for
// exact vector distance computation. If logger is provided, logs database
// operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	// Auto-load sqlite-vec into every new connection. Process-wide, so
	// once is enough.
	registerVecOnce.Do(sqlitevec.Auto)

	if logger != nil {
		logger.Debugw("Opening database", "path", path)
	}

	// Pragmas ride in the DSN so every connection the pool opens gets
	// them. WAL allows concurrent reads during writes; foreign keys make
	// edge and embedding rows cascade on atom deletion.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d",
		path, SQLiteBusyTimeoutMS)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "opening database"), errors.ErrStorage)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Mark(errors.Wrap(err, "opening database"), errors.ErrStorage)
	}

	if logger != nil {
		logger.Infow("Database opened",
			"path", path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}

	return db, nil
}

// OpenWithMigrations opens the database, applies all pending migrations and
// verifies the store's schema generation is one this build can serve.
func OpenWithMigrations(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	if err := checkSchemaGeneration(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private in-memory database with the same settings as
// Open. The connection pool is capped at one connection so every statement
// sees the same in-memory store.
func OpenMemory(logger *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(":memory:", logger)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
