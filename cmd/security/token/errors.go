package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSecretMissing = errors.New("token secret missing")
	ErrSecretStorage = errors.New("token secret storage")
)
