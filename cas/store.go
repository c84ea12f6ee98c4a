// Package cas implements the content-addressed atom store: exact
// deduplication by SHA-256 content hash and reference-count lifecycle
// management. The dedup invariant (at most one live atom per content hash)
// is enforced by the unique index on atoms.content_hash; concurrent inserts
// of identical content race on that index and losers retry as lookups.
package cas

import (
	"context"
	"database/sql"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so store operations can
// run standalone or inside an ingest transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides content-addressed atom persistence.
type Store struct {
	q      DBTX
	logger *zap.SugaredLogger
}

// NewStore creates a content-address store over the given database.
func NewStore(q DBTX, logger *zap.SugaredLogger) *Store {
	return &Store{q: q, logger: logger}
}

// WithTx returns a copy of the store that runs against the transaction.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{q: tx, logger: s.logger}
}

// AtomFactory constructs the atom record to insert when content is new.
// Invoked only on the not-a-duplicate branch of LookupOrInsert.
type AtomFactory func() (*atom.Atom, error)

const (
	bumpRefQuery = `
		UPDATE atoms
		SET reference_count = reference_count + 1, gc_eligible_at = NULL
		WHERE content_hash = ?
		RETURNING id, reference_count`

	insertAtomQuery = `
		INSERT INTO atoms (content_hash, modality, subtype, value, reference_count, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		RETURNING id`

	selectAtomQuery = `
		SELECT id, content_hash, modality, subtype, value, reference_count, created_at, gc_eligible_at
		FROM atoms`
)

// lookupOrInsertAttempts bounds the insert/lookup race loop. More than two
// iterations means something other than a dedup race is wrong.
const lookupOrInsertAttempts = 3

// LookupOrInsert atomically checks for an existing atom with this digest.
// If found, its reference count is incremented (rescuing it from any pending
// GC) and (existing id, true) is returned. Otherwise factory constructs a
// new atom which is inserted with reference_count=1, returning (new id,
// false). Safe under concurrent callers for the same digest.
func (s *Store) LookupOrInsert(ctx context.Context, digest atom.Digest, factory AtomFactory) (atom.ID, bool, error) {
	for attempt := 0; attempt < lookupOrInsertAttempts; attempt++ {
		// Duplicate path first: bump the refcount of the existing atom.
		var id atom.ID
		var refCount int64
		err := s.q.QueryRowContext(ctx, bumpRefQuery, digest.Bytes()).Scan(&id, &refCount)
		if err == nil {
			s.logger.Debugw("Deduplicated ingest",
				"atom_id", id,
				"digest", digest.String(),
				"reference_count", refCount,
			)
			return id, true, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, false, storageErr(err, "looking up atom by content hash")
		}

		// New content: construct and insert.
		a, err := factory()
		if err != nil {
			return 0, false, errors.Wrap(err, "atom factory")
		}

		err = s.q.QueryRowContext(ctx, insertAtomQuery,
			digest.Bytes(),
			a.Modality,
			a.Subtype,
			a.Value,
			time.Now().UTC().Format(time.RFC3339Nano),
		).Scan(&id)
		if err == nil {
			return id, false, nil
		}
		if isUniqueViolation(err) {
			// Lost the insert race; the winner's row exists now. Retry
			// the bump path.
			continue
		}
		return 0, false, storageErr(err, "inserting atom")
	}

	return 0, false, errors.Mark(
		errors.Newf("lookup-or-insert did not converge after %d attempts", lookupOrInsertAttempts),
		errors.ErrStorage,
	)
}

// Release decrements the atom's reference count. When the count reaches
// zero the atom is stamped GC-eligible; physical deletion is deferred to the
// garbage collector's grace period. Returns the remaining count.
func (s *Store) Release(ctx context.Context, id atom.ID) (int64, error) {
	const query = `
		UPDATE atoms
		SET reference_count = reference_count - 1,
		    gc_eligible_at = CASE WHEN reference_count - 1 = 0 THEN ? ELSE gc_eligible_at END
		WHERE id = ? AND reference_count > 0
		RETURNING reference_count`

	var remaining int64
	err := s.q.QueryRowContext(ctx, query, time.Now().UTC().Format(time.RFC3339Nano), int64(id)).Scan(&remaining)
	if err == nil {
		if remaining == 0 {
			s.logger.Infow("Atom pending deletion",
				"atom_id", id,
			)
		}
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, storageErr(err, "releasing atom")
	}

	// No row updated: either the atom is gone or its count is already zero.
	if _, getErr := s.Get(ctx, id); getErr != nil {
		return 0, getErr
	}
	return 0, errors.Mark(errors.Newf("atom %d reference count is already zero", id), errors.ErrInvalidArgument)
}

// Get returns the atom record by id.
func (s *Store) Get(ctx context.Context, id atom.ID) (*atom.Atom, error) {
	row := s.q.QueryRowContext(ctx, selectAtomQuery+" WHERE id = ?", int64(id))
	a, err := scanAtom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.Newf("atom %d", id), errors.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err, "fetching atom")
	}
	return a, nil
}

// GetByHash returns the atom record for a content digest.
func (s *Store) GetByHash(ctx context.Context, digest atom.Digest) (*atom.Atom, error) {
	row := s.q.QueryRowContext(ctx, selectAtomQuery+" WHERE content_hash = ?", digest.Bytes())
	a, err := scanAtom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.Newf("digest %s", digest), errors.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr(err, "fetching atom by hash")
	}
	return a, nil
}

// IDByHash is the O(1) content-addressable lookup: digest to atom id.
func (s *Store) IDByHash(ctx context.Context, digest atom.Digest) (atom.ID, error) {
	var id atom.ID
	err := s.q.QueryRowContext(ctx, "SELECT id FROM atoms WHERE content_hash = ?", digest.Bytes()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Mark(errors.Newf("digest %s", digest), errors.ErrNotFound)
	}
	if err != nil {
		return 0, storageErr(err, "looking up atom id by hash")
	}
	return id, nil
}

func scanAtom(row *sql.Row) (*atom.Atom, error) {
	var a atom.Atom
	var hash []byte
	var createdAt string
	var gcEligibleAt sql.NullString

	err := row.Scan(&a.ID, &hash, &a.Modality, &a.Subtype, &a.Value, &a.ReferenceCount, &createdAt, &gcEligibleAt)
	if err != nil {
		return nil, err
	}

	digest, err := atom.DigestFromBytes(hash)
	if err != nil {
		return nil, errors.Wrap(err, "stored content hash is malformed")
	}
	a.ContentHash = digest

	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, errors.Wrap(err, "stored created_at is malformed")
	}
	if gcEligibleAt.Valid {
		ts, err := parseTime(gcEligibleAt.String)
		if err != nil {
			return nil, errors.Wrap(err, "stored gc_eligible_at is malformed")
		}
		a.GCEligibleAt = &ts
	}
	return &a, nil
}

func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	// SQLite's datetime('now') default produces "YYYY-MM-DD HH:MM:SS".
	return time.Parse("2006-01-02 15:04:05", s)
}

func storageErr(err error, msg string) error {
	return errors.Mark(errors.Wrap(err, msg), errors.ErrStorage)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
