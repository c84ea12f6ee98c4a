package db

import (
	"strings"

	"github.com/axiomata/atomstore/errors"
)

// ErrDatabaseClosed marks operations attempted after the database handle was
// closed, normally during shutdown while a background sweeper is still
// running.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err indicates a closed database: either a
// wrapped ErrDatabaseClosed, or a raw driver error, which cannot be wrapped
// at the source and is matched by message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
