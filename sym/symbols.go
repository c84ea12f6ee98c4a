// Package sym defines canonical glyphs for atomstore subsystems. These
// symbols are stable across CLI output and documentation.
package sym

// Subsystem glyphs used as CLI prefixes.
const (
	Atom    = "⚛" // atom — content-addressed units
	Ingest  = "⨳" // ingest — store new content
	Search  = "⊨" // search — semantic similarity
	Lineage = "⋈" // lineage — provenance traversal
	GC      = "♻" // gc — garbage collection
	DB      = "⊔" // database/storage layer
	Stats   = "≡" // statistics and configuration
	Verify  = "✓" // integrity verification
)

// Label returns a short human label for a glyph, empty when unknown.
func Label(glyph string) string {
	switch glyph {
	case Atom:
		return "atom"
	case Ingest:
		return "ingest"
	case Search:
		return "search"
	case Lineage:
		return "lineage"
	case GC:
		return "gc"
	case DB:
		return "database"
	case Stats:
		return "stats"
	case Verify:
		return "verify"
	}
	return ""
}
