package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// maxKeyLength bounds the digest size Verify is willing to derive. Stored
// hashes are untrusted input; an oversized one must not cost more than a
// normal login.
const maxKeyLength = 128

// Hashed is a stored credential: hex digest plus the hex salt that produced it.
type Hashed struct {
	Hash string
	Salt string
}

// Hash derives a scrypt digest for password.
//
// If salt is empty a fresh random salt of Params.SaltLength bytes is
// generated. The salt is used as its hex text, not the decoded bytes, which
// keeps the digest identical to the one the Node backend produced for the
// same record.
//
// Hash does not apply the policy; callers validate first.
func (c Config) Hash(password, salt string) (Hashed, error) {
	if salt == "" {
		b := make([]byte, c.Params.SaltLength)
		if _, err := rand.Read(b); err != nil {
			return Hashed{}, fmt.Errorf("salt: %w", err)
		}
		salt = hex.EncodeToString(b)
	}

	key, err := c.derive(password, salt, c.Params.KeyLength)
	if err != nil {
		return Hashed{}, err
	}

	return Hashed{Hash: hex.EncodeToString(key), Salt: salt}, nil
}

// Verify reports whether password matches storedHash under salt.
// Malformed stored values never match; Verify does not return errors.
func (c Config) Verify(password, storedHash, salt string) bool {
	expected, err := hex.DecodeString(storedHash)
	if err != nil || len(expected) == 0 || len(expected) > maxKeyLength {
		return false
	}
	if salt == "" {
		return false
	}

	key, err := c.derive(password, salt, len(expected))
	if err != nil {
		return false
	}

	// Constant-time compare.
	return subtle.ConstantTimeCompare(key, expected) == 1
}

func (c Config) derive(password, salt string, keyLen int) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), c.Params.N, c.Params.R, c.Params.P, keyLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt: %w", err)
	}
	return key, nil
}
