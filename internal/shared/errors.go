package shared

import "errors"

// Error taxonomy shared across modules. Services wrap these sentinels with
// context via fmt.Errorf("%w: ...") and the transport layer maps each one to
// exactly one HTTP status and error code.
var (
	// ErrValidation indicates bad input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates an unknown resource id.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers both an incompatible request status and a
	// stale-version CAS failure. Never retried silently.
	ErrConflict = errors.New("conflict")
	// ErrNegativeStock indicates the mutation would drive on-hand below zero.
	ErrNegativeStock = errors.New("insufficient stock")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the role or ownership required.
	ErrForbidden = errors.New("forbidden")
)
