package models

import "errors"

// Domain errors for the recommendation engine. Callers match these with
// errors.Is; packages wrap them with request-specific context.
var (
	// ErrNotFound indicates a subject, item, or default set is absent from the store.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch indicates two vectors of different lengths were compared,
	// or a stored vector does not match the configured dimensionality.
	// Never coerced: the affected request fails.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyCandidateSet indicates the ranker was given no candidate vectors.
	ErrEmptyCandidateSet = errors.New("empty candidate set")

	// ErrNoCandidates indicates the item catalog is empty; there is nothing to rank.
	ErrNoCandidates = errors.New("no candidate items in catalog")

	// ErrNoDefaultsConfigured indicates a ranking was rejected and no default
	// set exists for the requested selector.
	ErrNoDefaultsConfigured = errors.New("no default set configured")

	// ErrEmbeddingService indicates the external embedding generator failed.
	// Recoverable: the orchestrator falls through to defaults.
	ErrEmbeddingService = errors.New("embedding service failure")

	// ErrExplanationService indicates the external explanation generator failed.
	// Non-fatal: the recommendation is returned with a placeholder explanation.
	ErrExplanationService = errors.New("explanation service failure")

	// ErrDanglingReference indicates a ranked item ID could no longer be
	// resolved to metadata. The entry is logged and dropped.
	ErrDanglingReference = errors.New("dangling item reference")
)
