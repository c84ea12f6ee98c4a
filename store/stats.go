package store

import (
	"context"
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/axiomata/atomstore/errors"
)

// Stats is a point-in-time snapshot of store size and process footprint.
type Stats struct {
	Atoms           int64  `json:"atoms"`
	PendingDeletion int64  `json:"pending_deletion"`
	Embeddings      int64  `json:"embeddings"`
	ProvenanceEdges int64  `json:"provenance_edges"`
	IndexedPoints   int    `json:"indexed_points"`
	DatabasePath    string `json:"database_path"`
	ProcessRSSBytes uint64 `json:"process_rss_bytes,omitempty"`
}

// Stats reports row counts, spatial index size and the process's resident
// memory. RSS is best-effort: a zero value means it could not be read.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{
		IndexedPoints: s.index.Len(),
		DatabasePath:  s.cfg.Database.Path,
	}

	counts := []struct {
		query string
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM atoms`, &out.Atoms},
		{`SELECT COUNT(*) FROM atoms WHERE reference_count = 0 AND gc_eligible_at IS NOT NULL`, &out.PendingDeletion},
		{`SELECT COUNT(*) FROM embeddings`, &out.Embeddings},
		{`SELECT COUNT(*) FROM provenance_edges`, &out.ProvenanceEdges},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "store: count rows"), errors.ErrStorage)
		}
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			out.ProcessRSSBytes = mem.RSS
		}
	}
	return out, nil
}
