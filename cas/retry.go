package cas

import (
	"context"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/axiomata/atomstore/errors"
)

// Retry runs fn up to attempts times with exponential backoff, retrying only
// transient storage failures (locked/busy database). Taxonomy errors such as
// cycle or dimension violations surface immediately.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var err error
	delay := base
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			aborted := errors.Wrap(ctx.Err(), "retry aborted")
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return errors.Mark(aborted, errors.ErrTimeout)
			}
			return aborted
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	// Driver errors that we could not unwrap to a sqlite3.Error.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database is busy")
}
