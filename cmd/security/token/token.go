package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

var b64 = base64.RawURLEncoding

// Identity is what a valid token asserts.
type Identity struct {
	SubjectID   string
	SubjectName string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type payload struct {
	Sub string `json:"sub"`
	Usr string `json:"usr"`
	Exp int64  `json:"exp"`
	Iat int64  `json:"iat"`
}

// Manager issues and verifies session tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager returns a Manager signing with secret. A non-positive ttl
// selects DefaultTTL.
func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, ErrSecretMissing
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Manager{secret: s, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue returns a signed token for the subject and its expiry.
func (m *Manager) Issue(subjectID, subjectName string, now time.Time) (string, time.Time, error) {
	exp := now.Add(m.ttl)
	raw, err := json.Marshal(payload{
		Sub: subjectID,
		Usr: subjectName,
		Exp: exp.UnixMilli(),
		Iat: now.UnixMilli(),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: marshal payload: %w", err)
	}

	enc := b64.EncodeToString(raw)
	return enc + "." + m.sign(enc), exp, nil
}

// Verify checks integrity and expiry. Every failure, including malformed
// input, yields (Identity{}, false).
func (m *Manager) Verify(token string, now time.Time) (Identity, bool) {
	enc, sig, ok := strings.Cut(token, ".")
	if !ok || enc == "" || sig == "" {
		return Identity{}, false
	}

	// Compare the encoded text: decoding first would let non-canonical
	// trailing bits alias a valid signature.
	if !hmac.Equal([]byte(sig), []byte(m.sign(enc))) {
		return Identity{}, false
	}

	raw, err := b64.DecodeString(enc)
	if err != nil {
		return Identity{}, false
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Identity{}, false
	}

	if p.Sub == "" || p.Exp <= now.UnixMilli() {
		return Identity{}, false
	}

	return Identity{
		SubjectID:   p.Sub,
		SubjectName: p.Usr,
		IssuedAt:    time.UnixMilli(p.Iat).UTC(),
		ExpiresAt:   time.UnixMilli(p.Exp).UTC(),
	}, true
}

func (m *Manager) sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(encodedPayload))
	return b64.EncodeToString(mac.Sum(nil))
}
