package models

import (
	"errors"
	"fmt"
)

// Error taxonomy for the ingestion and query paths. Handlers map these onto
// HTTP statuses; everything else wraps them with %w.
var (
	// ErrValidation marks a malformed or incomplete event draft. The event is
	// rejected, never committed.
	ErrValidation = errors.New("validation error")

	// ErrScoring marks a scorer failure. An event cannot be committed without
	// a score, so this is fatal to that ingestion. Investigation lookups have
	// no NotFound counterpart: an unknown address yields an empty report.
	ErrScoring = errors.New("scoring failure")
)

// NewValidationError wraps ErrValidation with a field-level reason.
func NewValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}
