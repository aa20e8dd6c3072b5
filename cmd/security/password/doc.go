// Package password provides password hashing and verification for Mission Control.
//
// Hashes are scrypt digests stored as hex next to a per-user hex salt. The
// format is shared with the users.json written by earlier dashboard releases:
// - Configurable scrypt parameters (via environment variables)
// - Password policy validation (minimum length)
// - Verification that treats stored values as untrusted and never errors
package password
