package atom

// RelationshipType names the semantic relation a provenance edge carries.
// The vocabulary is open (unknown values are stored verbatim), but only the
// known types below participate in typed behavior such as cycle checking.
type RelationshipType string

const (
	RelDerivedFrom  RelationshipType = "derived-from"
	RelSummarizedTo RelationshipType = "summarized-to"
	RelComposedOf   RelationshipType = "composed-of"
	RelSimilarTo    RelationshipType = "similar-to"
	RelReferencedIn RelationshipType = "referenced-in"
)

// knownRelationships is the closed set with defined semantics.
var knownRelationships = map[RelationshipType]bool{
	RelDerivedFrom:  true,
	RelSummarizedTo: true,
	RelComposedOf:   true,
	RelSimilarTo:    true,
	RelReferencedIn: true,
}

// Known reports whether the relationship type is part of the closed
// vocabulary. Unknown types are permitted but treated as inert annotations.
func (r RelationshipType) Known() bool {
	return knownRelationships[r]
}

// CycleSensitive reports whether edges of this type must keep the graph
// acyclic. Only derivation-structure relations qualify; associative
// relations like similar-to may legitimately form cycles.
func (r RelationshipType) CycleSensitive() bool {
	return r == RelDerivedFrom || r == RelComposedOf
}

func (r RelationshipType) String() string {
	return string(r)
}
