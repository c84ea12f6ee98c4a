// Package provenance records derivation lineage between atoms as an
// append-only directed acyclic graph. An edge points from the derived atom
// (source) to its origin (target); acyclicity is enforced at insertion time
// for the cycle-sensitive relationship types.
package provenance

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/cas"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/logger"
)

// Node is one atom reached during a lineage traversal, tagged with its
// breadth-first depth from the starting atom.
type Node struct {
	ID    atom.ID `json:"id"`
	Depth int     `json:"depth"`
}

// Traversal holds the atoms reached by Ancestors or Descendants. Truncated
// is set when the depth limit stopped the walk with unexplored edges
// remaining; the truncated result is still valid for every depth it covers.
type Traversal struct {
	Nodes     []Node `json:"nodes"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Graph provides provenance edge recording and lineage traversal.
type Graph struct {
	q             cas.DBTX
	atoms         *cas.Store
	logger        *zap.SugaredLogger
	maxCycleDepth int
}

// NewGraph creates a provenance graph over the given database. maxCycleDepth
// bounds the reachability search run before each cycle-sensitive edge insert.
func NewGraph(q cas.DBTX, atoms *cas.Store, log *zap.SugaredLogger, maxCycleDepth int) *Graph {
	if maxCycleDepth <= 0 {
		maxCycleDepth = 64
	}
	return &Graph{q: q, atoms: atoms, logger: log, maxCycleDepth: maxCycleDepth}
}

// WithTx returns a copy of the graph that runs against the transaction.
func (g *Graph) WithTx(tx *sql.Tx) *Graph {
	return &Graph{
		q:             tx,
		atoms:         g.atoms.WithTx(tx),
		logger:        g.logger,
		maxCycleDepth: g.maxCycleDepth,
	}
}

// AddEdge inserts a directed edge source -> target and returns its id.
// The relationship vocabulary is open: types outside the known set are
// stored verbatim as inert annotations. For cycle-sensitive relationship
// types it first verifies that source is not already reachable from
// target, so the insert cannot close a cycle.
func (g *Graph) AddEdge(ctx context.Context, source, target atom.ID, rel atom.RelationshipType, weight float64) (int64, error) {
	if source == target {
		return 0, errors.Mark(
			errors.Newf("provenance: self-referential edge on atom %d", source),
			errors.ErrInvalidArgument)
	}
	if rel == "" {
		return 0, errors.Mark(
			errors.New("provenance: empty relationship type"),
			errors.ErrInvalidArgument)
	}

	if !rel.Known() {
		g.logger.Debugw("storing unknown relationship type as inert annotation",
			logger.FieldRelationship, rel,
		)
	}

	if rel.CycleSensitive() {
		reachable, err := g.reachable(ctx, target, source)
		if err != nil {
			return 0, err
		}
		if reachable {
			return 0, errors.Mark(
				errors.Newf("provenance: edge %d -> %d (%s) would create a cycle", source, target, rel),
				errors.ErrCycleDetected)
		}
	}

	var id int64
	err := g.q.QueryRowContext(ctx,
		`INSERT INTO provenance_edges (source_id, target_id, relationship, weight)
		 VALUES (?, ?, ?, ?)
		 RETURNING id`,
		int64(source), int64(target), string(rel), weight,
	).Scan(&id)
	if err != nil {
		return 0, errors.Mark(
			errors.Wrapf(err, "provenance: insert edge %d -> %d", source, target),
			errors.ErrStorage)
	}

	g.logger.Debugw("provenance edge recorded",
		logger.FieldSourceID, source,
		logger.FieldTargetID, target,
		logger.FieldRelationship, rel,
	)
	return id, nil
}

// Ancestors walks backward from the atom toward its origins, breadth-first,
// up to maxDepth levels. The starting atom is always the first node, at
// depth 0. maxDepth <= 0 returns just the starting atom.
func (g *Graph) Ancestors(ctx context.Context, id atom.ID, maxDepth int) (Traversal, error) {
	return g.traverse(ctx, id, maxDepth, true)
}

// Descendants walks forward from the atom toward everything derived from it,
// breadth-first, up to maxDepth levels. Same contract as Ancestors.
func (g *Graph) Descendants(ctx context.Context, id atom.ID, maxDepth int) (Traversal, error) {
	return g.traverse(ctx, id, maxDepth, false)
}

// LookupByHash resolves a content digest to an atom id. Delegates to the
// content-address store's unique hash index.
func (g *Graph) LookupByHash(ctx context.Context, digest atom.Digest) (atom.ID, error) {
	return g.atoms.IDByHash(ctx, digest)
}

// traverse runs a depth-limited BFS. When ancestors is true it follows edges
// from source to target (derived atom to origin); otherwise the reverse.
// Level ordering within a depth is edge insertion order.
func (g *Graph) traverse(ctx context.Context, start atom.ID, maxDepth int, ancestors bool) (Traversal, error) {
	result := Traversal{Nodes: []Node{{ID: start, Depth: 0}}}
	if maxDepth <= 0 {
		return result, nil
	}

	visited := map[atom.ID]bool{start: true}
	frontier := []atom.ID{start}

	for depth := 1; len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return Traversal{}, errors.Mark(
				errors.Wrap(err, "provenance: traversal cancelled"),
				errors.ErrTimeout)
		}
		next, err := g.neighbors(ctx, frontier, ancestors)
		if err != nil {
			return Traversal{}, err
		}

		if depth > maxDepth {
			for _, id := range next {
				if !visited[id] {
					result.Truncated = true
					g.logger.Debugw("lineage traversal truncated at depth limit",
						logger.FieldAtomID, start,
						logger.FieldDepth, maxDepth,
						logger.FieldTruncated, true,
					)
					break
				}
			}
			break
		}

		frontier = frontier[:0]
		for _, id := range next {
			if visited[id] {
				continue
			}
			visited[id] = true
			result.Nodes = append(result.Nodes, Node{ID: id, Depth: depth})
			frontier = append(frontier, id)
		}
	}

	return result, nil
}

// neighbors returns the atoms one edge away from the frontier, in edge
// insertion order, duplicates included (the caller deduplicates).
func (g *Graph) neighbors(ctx context.Context, frontier []atom.ID, ancestors bool) ([]atom.ID, error) {
	fromCol, toCol := "source_id", "target_id"
	if !ancestors {
		fromCol, toCol = toCol, fromCol
	}

	query := "SELECT " + toCol + " FROM provenance_edges WHERE " + fromCol +
		" IN (" + placeholders(len(frontier)) + ") ORDER BY id ASC"

	args := make([]any, len(frontier))
	for i, id := range frontier {
		args[i] = int64(id)
	}

	rows, err := g.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Mark(
			errors.Wrap(err, "provenance: query edges"),
			errors.ErrStorage)
	}
	defer rows.Close()

	var out []atom.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Mark(
				errors.Wrap(err, "provenance: scan edge"),
				errors.ErrStorage)
		}
		out = append(out, atom.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(
			errors.Wrap(err, "provenance: iterate edges"),
			errors.ErrStorage)
	}
	return out, nil
}

// reachable reports whether to can be reached from from by following
// cycle-sensitive edges in the source -> target direction, searching at
// most maxCycleDepth levels. Hitting the depth bound without finding to
// counts as unreachable, which keeps edge insertion cheap on deep graphs
// at the cost of admitting cycles longer than the bound.
func (g *Graph) reachable(ctx context.Context, from, to atom.ID) (bool, error) {
	if from == to {
		return true, nil
	}

	visited := map[atom.ID]bool{from: true}
	frontier := []atom.ID{from}

	for depth := 0; depth < g.maxCycleDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return false, errors.Mark(
				errors.Wrap(err, "provenance: cycle check cancelled"),
				errors.ErrTimeout)
		}

		next, err := g.cycleSensitiveTargets(ctx, frontier)
		if err != nil {
			return false, err
		}

		frontier = frontier[:0]
		for _, id := range next {
			if id == to {
				return true, nil
			}
			if visited[id] {
				continue
			}
			visited[id] = true
			frontier = append(frontier, id)
		}
	}
	return false, nil
}

func (g *Graph) cycleSensitiveTargets(ctx context.Context, frontier []atom.ID) ([]atom.ID, error) {
	query := `SELECT target_id FROM provenance_edges
	          WHERE source_id IN (` + placeholders(len(frontier)) + `)
	          AND relationship IN (?, ?)`

	args := make([]any, 0, len(frontier)+2)
	for _, id := range frontier {
		args = append(args, int64(id))
	}
	args = append(args, string(atom.RelDerivedFrom), string(atom.RelComposedOf))

	rows, err := g.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Mark(
			errors.Wrap(err, "provenance: cycle check query"),
			errors.ErrStorage)
	}
	defer rows.Close()

	var out []atom.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Mark(
				errors.Wrap(err, "provenance: cycle check scan"),
				errors.ErrStorage)
		}
		out = append(out, atom.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Mark(
			errors.Wrap(err, "provenance: cycle check iterate"),
			errors.ErrStorage)
	}
	return out, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
