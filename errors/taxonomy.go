package errors

// Sentinel errors for the store's error taxonomy.
// Every error crossing a package boundary is marked with exactly one of
// these via errors.Mark, so callers can classify with errors.Is without
// depending on message text.
var (
	// ErrStorage indicates the underlying persistence layer is unavailable
	// or corrupted. Transient storage errors may be retried a bounded
	// number of times before being surfaced.
	ErrStorage = New("storage unavailable")

	// ErrDimensionMismatch indicates an embedding vector's length does not
	// match the configured dimensionality. Never coerced, never retried.
	ErrDimensionMismatch = New("embedding dimension mismatch")

	// ErrCycleDetected indicates a provenance edge would create a cycle
	// among cycle-sensitive relationship types. Never retried.
	ErrCycleDetected = New("provenance cycle detected")

	// ErrInvalidArgument indicates malformed parameters (negative k, zero
	// radius, unknown direction, ...). Indicates a caller bug.
	ErrInvalidArgument = New("invalid argument")

	// ErrTimeout indicates an operation exceeded its deadline. The caller
	// may retry; ingest guarantees no partial atom is left visible.
	ErrTimeout = New("operation timed out")

	// ErrNotFound indicates a referenced atom or digest does not exist or
	// was garbage collected.
	ErrNotFound = New("not found")
)

// IsRetryable reports whether the error class permits a retry. Only
// transient storage failures and timeouts qualify; everything else in the
// taxonomy indicates bad input and is surfaced immediately.
func IsRetryable(err error) bool {
	return err != nil && (Is(err, ErrStorage) || Is(err, ErrTimeout))
}

// IsNotFound reports whether the error is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidArgument reports whether the error is or wraps ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	return err != nil && Is(err, ErrInvalidArgument)
}
