package model

import "errors"

// Error taxonomy for the memory store. Backends and the facade wrap these
// sentinels so callers can branch with errors.Is.
var (
	// ErrInvalidItem marks a malformed item at add-time: empty text or a
	// negative token estimate. Rejected before any mutation.
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidConfig marks an out-of-range or contradictory SizeConfig.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNotFound marks an operation referencing an absent id.
	ErrNotFound = errors.New("not found")

	// ErrUnsupported marks an operation the backend variant cannot perform,
	// e.g. a semantic query without embedding support. Check
	// Backend.SupportsSemantic before querying instead of relying on this.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrBackendUnavailable marks a storage or network failure in a
	// persistent backend. During eviction it degrades to a logged warning.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrSummarization marks a failed summarize-on-eviction callback.
	// Non-fatal: the affected group falls back to hard deletion.
	ErrSummarization = errors.New("summarization failed")
)
