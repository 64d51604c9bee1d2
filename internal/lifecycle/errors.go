package lifecycle

import "errors"

// Lifecycle errors. All transition entry points surface ErrNotFound for
// unknown or already-closed ids so callers can report "already handled"
// instead of crashing.
var (
	ErrNotFound          = errors.New("request not found or already handled")
	ErrInvalidTransition = errors.New("transition not allowed from current state")
	ErrInvalidInterval   = errors.New("end time must be after start time")
	ErrPersistence       = errors.New("failed to persist record")
)
