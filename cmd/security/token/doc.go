// Package token issues and verifies Mission Control session tokens and owns
// the signing secret they depend on.
//
// Wire format:
//
//	base64url(payload-json) "." base64url(HMAC-SHA256(encoded payload, secret))
//
// The payload carries {sub, usr, iat, exp} with times in Unix milliseconds.
// Tokens are stateless: there is no revocation list, only expiry.
//
// Environment:
// - MC_TOKEN_SECRET: overrides the persisted secret (JWT_SECRET is accepted as a legacy alias).
package token
