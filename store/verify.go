package store

import (
	"bytes"
	"context"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
)

// VerifyReport lists integrity problems found by a Verify scan. Problems
// are reported, never auto-repaired.
type VerifyReport struct {
	AtomsChecked     int       `json:"atoms_checked"`
	DigestMismatches []atom.ID `json:"digest_mismatches,omitempty"`
	RefcountDrift    []atom.ID `json:"refcount_drift,omitempty"`
	IndexDrift       int       `json:"index_drift"`
}

// Clean reports whether the scan found no problems.
func (r *VerifyReport) Clean() bool {
	return len(r.DigestMismatches) == 0 && len(r.RefcountDrift) == 0 && r.IndexDrift == 0
}

// Verify scans the store for corruption: atoms whose value no longer
// matches their content hash, zero-refcount atoms missing their GC
// timestamp, and drift between the embeddings table and the in-memory
// spatial index.
func (s *Store) Verify(ctx context.Context) (*VerifyReport, error) {
	report := &VerifyReport{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_hash, value, reference_count, gc_eligible_at FROM atoms`)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "store: verify scan"), errors.ErrStorage)
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, errors.Mark(
				errors.Wrap(err, "store: verify cancelled"), errors.ErrTimeout)
		}

		var id int64
		var hash, value []byte
		var refCount int64
		var gcEligibleAt *string
		if err := rows.Scan(&id, &hash, &value, &refCount, &gcEligibleAt); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "store: verify scan row"), errors.ErrStorage)
		}
		report.AtomsChecked++

		if computed := atom.ComputeDigest(value); !bytes.Equal(computed.Bytes(), hash) {
			report.DigestMismatches = append(report.DigestMismatches, atom.ID(id))
		}
		if refCount == 0 && gcEligibleAt == nil {
			report.RefcountDrift = append(report.RefcountDrift, atom.ID(id))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "store: verify iterate"), errors.ErrStorage)
	}

	var embedded int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings`).Scan(&embedded); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "store: verify embeddings"), errors.ErrStorage)
	}
	report.IndexDrift = embedded - s.index.Len()

	if !report.Clean() {
		s.logger.Warnw("Store verification found problems",
			logger.FieldComponent, "verify",
			logger.FieldCount, report.AtomsChecked,
		)
	}
	return report, nil
}
