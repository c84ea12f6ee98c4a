package store

import (
	"context"

	"github.com/axiomata/atomstore/atom"
	"github.com/axiomata/atomstore/errors"
	"github.com/axiomata/atomstore/provenance"
)

// Direction selects which way GetLineage walks the provenance graph.
type Direction string

const (
	// DirectionUp walks toward origins (ancestors).
	DirectionUp Direction = "up"
	// DirectionDown walks toward derived atoms (descendants).
	DirectionDown Direction = "down"
	// DirectionBoth walks both ways.
	DirectionBoth Direction = "both"
)

// LineageGraph is the read-only lineage view around one atom. The root atom
// appears at depth 0 in whichever traversals ran.
type LineageGraph struct {
	Root        atom.ID              `json:"root"`
	Ancestors   provenance.Traversal `json:"ancestors,omitempty"`
	Descendants provenance.Traversal `json:"descendants,omitempty"`
}

// GetLineage returns the atoms reachable from the given atom through the
// provenance graph, up to depth levels in the requested direction.
func (s *Store) GetLineage(ctx context.Context, id atom.ID, depth int, dir Direction) (*LineageGraph, error) {
	// Fail on unknown atoms rather than returning an empty graph.
	if _, err := s.atoms.Get(ctx, id); err != nil {
		return nil, err
	}

	out := &LineageGraph{Root: id}
	var err error

	switch dir {
	case DirectionUp:
		out.Ancestors, err = s.graph.Ancestors(ctx, id, depth)
	case DirectionDown:
		out.Descendants, err = s.graph.Descendants(ctx, id, depth)
	case DirectionBoth:
		if out.Ancestors, err = s.graph.Ancestors(ctx, id, depth); err == nil {
			out.Descendants, err = s.graph.Descendants(ctx, id, depth)
		}
	default:
		return nil, errors.Mark(
			errors.Newf("store: unknown lineage direction %q", dir),
			errors.ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
