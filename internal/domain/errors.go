package domain

import "errors"

// Sentinel errors for the core operations. Services wrap these with %w and
// the HTTP layer maps them to status codes in one place.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrAccountLimitExceeded = errors.New("account active batch limit exceeded")
	ErrInvalidState         = errors.New("invalid batch state")
	ErrNoActiveBatch        = errors.New("no active batch")
	ErrDuplicateFile        = errors.New("duplicate file name in batch")
	ErrStoreUnavailable     = errors.New("store unavailable")
)
