// Package atom defines the core data model of the store: atoms (the
// canonical content units), their embeddings, and the provenance edges that
// relate them. All identifiers are stable 64-bit integers assigned at
// creation and never reused.
package atom

import "time"

// ID is a stable 64-bit atom identifier.
type ID int64

// Common modality tags. The modality vocabulary is open; these cover the
// built-in ingestion paths.
const (
	ModalityText  = "text"
	ModalityImage = "image"
	ModalityBlob  = "blob"
)

// SubtypeComposite marks synthetic parent atoms produced by decomposition of
// oversized payloads. A composite atom's value is the digest of the full
// original content, not the content itself.
const SubtypeComposite = "composite"

// Atom is the canonical unit of content. Atoms are immutable after creation:
// new content always creates a new atom, and rows are removed only by
// garbage collection.
type Atom struct {
	ID             ID
	ContentHash    Digest
	Modality       string
	Subtype        string
	Value          []byte // bounded by the configured atomic payload cap
	ReferenceCount int64
	CreatedAt      time.Time
	// GCEligibleAt is set when ReferenceCount reaches zero and cleared if
	// the atom is re-referenced before the sweep. Nil for active atoms.
	GCEligibleAt *time.Time
}

// State describes where an atom sits in its lifecycle.
type State int

const (
	StateActive State = iota
	StatePendingDeletion
)

// State derives the lifecycle state from the refcount columns.
func (a *Atom) State() State {
	if a.ReferenceCount == 0 && a.GCEligibleAt != nil {
		return StatePendingDeletion
	}
	return StateActive
}

// Embedding is a vector representation owned by an atom, together with its
// 3D spatial projection. Point coordinates, the Hilbert index and the bucket
// are always recomputed jointly from the vector; they never drift.
type Embedding struct {
	ID           int64
	AtomID       ID
	Kind         string // embedding type; fixes the vector dimensionality
	Vector       []float32
	X, Y, Z      float64
	HilbertIndex uint64
	Bucket       uint32
	CreatedAt    time.Time
}

// ProvenanceEdge is a directed derivation relationship between two atoms.
// Edges point from the derived atom (Source) to its origin (Target) and are
// append-only: never updated, deleted only by GC cascade.
type ProvenanceEdge struct {
	ID        int64
	SourceID  ID
	TargetID  ID
	Type      RelationshipType
	Weight    float64
	CreatedAt time.Time
}
