package domain

import "errors"

// Sentinel errors shared across packages. Wrap with fmt.Errorf("%w: ...")
// to add context while keeping errors.Is checks working.
var (
	// ErrNotFound means the referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput means the caller supplied a structurally invalid value.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRange means a filter date range failed validation.
	// Range violations are raised before any filtering happens, never
	// silently clamped.
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidTransition means a cooldown state change was not allowed
	// from its current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
