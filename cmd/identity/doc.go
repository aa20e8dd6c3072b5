// Package identity implements Mission Control's account and credential layer.
//
// It owns the user record, the Store persistence boundary (a JSON file by
// default, PostgreSQL optionally) and the Accounts service that the HTTP
// layer calls to create accounts and authenticate logins.
//
// Plaintext passwords never leave this package's call frames: they are not
// logged, stored, or returned.
package identity
