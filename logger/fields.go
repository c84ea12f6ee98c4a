package logger

// Standard field names for consistent structured logging across atomstore.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldAtomID    = "atom_id"
	FieldDigest    = "digest"
	FieldOpID      = "op_id"
	FieldComponent = "component"

	// Spatial
	FieldBucket       = "bucket"
	FieldHilbertIndex = "hilbert_index"
	FieldCandidates   = "candidates"

	// Provenance
	FieldSourceID     = "source_id"
	FieldTargetID     = "target_id"
	FieldRelationship = "relationship"
	FieldDepth        = "depth"

	// Operations
	FieldOperation  = "operation"
	FieldDurationMS = "duration_ms"
	FieldCount      = "count"
	FieldBatchSize  = "batch_size"

	// Errors
	FieldError = "error"

	// Lifecycle
	FieldRefCount  = "reference_count"
	FieldDuplicate = "duplicate"
	FieldTruncated = "truncated"
	FieldForced    = "forced"

	// Files and storage
	FieldPath      = "path"
	FieldSize      = "size"
	FieldMigration = "migration"
	FieldVersion   = "version"
)
