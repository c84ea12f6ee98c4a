package store

import (
	"context"
	"strings"
	"time"

	sqlitevec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
	"github.com/axiomata/atomstore/spatial"
)

// SearchResult is one semantic search hit. Score is cosine similarity of
// the stored vector against the query, in [-1, 1], higher is better.
type SearchResult struct {
	AtomID atom.ID `json:"atom_id"`
	Score  float64 `json:"score"`
}

// SemanticSearch finds the topK stored atoms most similar to the query
// vector. The spatial index prefilters candidates (the query point's coarse
// bucket plus its nearest projected neighbors, capped at maxCandidates);
// the surviving set is re-ranked by exact cosine distance in SQL.
// maxCandidates <= 0 uses the configured default. Searching an empty store
// returns an empty result.
func (s *Store) SemanticSearch(ctx context.Context, query []float32, topK, maxCandidates int) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, errors.Mark(
			errors.Newf("store: non-positive top_k %d", topK),
			errors.ErrInvalidArgument)
	}
	if len(query) != s.cfg.Embedding.Dimensions {
		return nil, errors.Mark(
			errors.Newf("store: query has %d dimensions, store configured for %d",
				len(query), s.cfg.Embedding.Dimensions),
			errors.ErrDimensionMismatch)
	}
	if maxCandidates <= 0 {
		maxCandidates = s.cfg.Search.MaxSpatialCandidates
	}

	start := time.Now()

	point, err := s.projector.Project(query)
	if err != nil {
		return nil, err
	}

	candidates, err := s.spatialCandidates(point, maxCandidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	results, err := s.rerank(ctx, query, candidates, topK)
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Semantic search complete",
		logger.FieldCandidates, len(candidates),
		logger.FieldCount, len(results),
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return results, nil
}

// spatialCandidates unions the query's coarse bucket members with its
// nearest projected neighbors, deduplicated and capped at limit. Bucket
// members come first: they are the cheapest and most local candidates.
func (s *Store) spatialCandidates(point spatial.Point3D, limit int) ([]atom.ID, error) {
	bucket := spatial.Bucket(point, s.cfg.Spatial.BucketGrid)

	seen := make(map[atom.ID]bool, limit)
	out := make([]atom.ID, 0, limit)
	add := func(id atom.ID) bool {
		if seen[id] {
			return len(out) < limit
		}
		seen[id] = true
		out = append(out, id)
		return len(out) < limit
	}

	for _, id := range s.index.BucketMembers(bucket) {
		if !add(id) {
			return out, nil
		}
	}

	if s.index.Len() == 0 {
		return out, nil
	}
	neighbors, err := s.index.KNN(point, limit)
	if err != nil {
		return nil, err
	}
	for _, n := range neighbors {
		if !add(n.ID) {
			break
		}
	}
	return out, nil
}

// rerank computes exact cosine distance between the query and each
// candidate's stored vector, delegating the arithmetic to sqlite-vec.
func (s *Store) rerank(ctx context.Context, query []float32, candidates []atom.ID, topK int) ([]SearchResult, error) {
	blob, err := sqlitevec.SerializeFloat32(query)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "store: serialize query vector"), errors.ErrStorage)
	}

	stmt := `SELECT atom_id, vec_distance_cosine(vector, ?) AS distance
	        FROM embeddings
	        WHERE atom_id IN (` + placeholders(len(candidates)) + `)
	        ORDER BY distance ASC, atom_id ASC
	        LIMIT ?`

	args := make([]any, 0, len(candidates)+2)
	args = append(args, blob)
	for _, id := range candidates {
		args = append(args, int64(id))
	}
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "store: rerank candidates"), errors.ErrStorage)
	}
	defer rows.Close()

	results := make([]SearchResult, 0, topK)
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, errors.Mark(errors.Wrap(err, "store: scan search result"), errors.ErrStorage)
		}
		results = append(results, SearchResult{AtomID: atom.ID(id), Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "store: iterate search results"), errors.ErrStorage)
	}

	return results, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
