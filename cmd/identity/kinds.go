package identity

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")

	ErrDuplicateUsername = errors.New("duplicate_username")
	ErrWeakPassword      = errors.New("weak_password")
	ErrSetupComplete     = errors.New("setup_complete")
)
