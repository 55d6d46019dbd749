package services

import "errors"

// Validation errors are surfaced to HTTP callers as 400s; anything else is a 500.
var (
	ErrEmptyQuestion    = errors.New("question is required")
	ErrNoFiles          = errors.New("at least one file must be provided")
	ErrMissingWorkspace = errors.New("workspace id is required")
)

// ErrEmbeddingUnavailable is returned when the question could not be turned
// into a vector, either because no embedder is configured or it returned nothing.
var ErrEmbeddingUnavailable = errors.New("failed to embed question")

// IsValidationError reports whether err was caused by bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyQuestion) || errors.Is(err, ErrNoFiles) || errors.Is(err, ErrMissingWorkspace)
}
