package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: row does not exist
//   - ErrConflict: a uniqueness rule rejected the write
//   - ErrInvalidState: row is not in the state the conditional write expected
//   - ErrStaleVersion: optimistic version check failed
//   - ErrUnavailable: backing service temporarily unavailable
//   - ErrLockHeld: a keyed lock is held by another owner
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrStaleVersion = errors.New("stale version")
	ErrUnavailable  = errors.New("unavailable")
	ErrLockHeld     = errors.New("lock held")
)
