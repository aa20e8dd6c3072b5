package token

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager([]byte("test-secret-test-secret-test-secret"), 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	tok, exp, err := m.Issue("01J0000000000000000000000A", "admin", testNow)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(testNow.Add(DefaultTTL)) {
		t.Fatalf("exp = %v", exp)
	}
	if strings.Count(tok, ".") != 1 {
		t.Fatalf("expected two segments, got %q", tok)
	}

	id, ok := m.Verify(tok, testNow.Add(time.Hour))
	if !ok {
		t.Fatalf("expected valid token")
	}
	if id.SubjectID != "01J0000000000000000000000A" || id.SubjectName != "admin" {
		t.Fatalf("identity mismatch: %+v", id)
	}
	if !id.IssuedAt.Equal(testNow) || !id.ExpiresAt.Equal(exp) {
		t.Fatalf("times mismatch: %+v", id)
	}
}

func TestIssue_PayloadWireFormat(t *testing.T) {
	m := newTestManager(t)

	tok, _, err := m.Issue("u1", "admin", testNow)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	enc, _, _ := strings.Cut(tok, ".")
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("payload not base64url: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("payload not json: %v", err)
	}
	if got["sub"] != "u1" || got["usr"] != "admin" {
		t.Fatalf("payload = %v", got)
	}
	if got["iat"].(float64) != float64(testNow.UnixMilli()) {
		t.Fatalf("iat must be unix millis, got %v", got["iat"])
	}
}

func TestVerify_Expiry(t *testing.T) {
	m, err := NewManager([]byte("k"), time.Minute)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, exp, err := m.Issue("u1", "admin", testNow)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, ok := m.Verify(tok, exp.Add(-time.Millisecond)); !ok {
		t.Fatalf("expected valid just before expiry")
	}
	if _, ok := m.Verify(tok, exp); ok {
		t.Fatalf("expiry must be strictly in the future")
	}
	if _, ok := m.Verify(tok, exp.Add(time.Hour)); ok {
		t.Fatalf("expected expired")
	}
}

func TestVerify_SignatureTamper(t *testing.T) {
	m := newTestManager(t)

	tok, _, err := m.Issue("u1", "admin", testNow)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	dot := strings.IndexByte(tok, '.')

	for i := dot + 1; i < len(tok); i++ {
		b := []byte(tok)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if _, ok := m.Verify(string(b), testNow); ok {
			t.Fatalf("flipped signature char %d accepted", i-dot-1)
		}
	}
}

func TestVerify_PayloadTamper(t *testing.T) {
	m := newTestManager(t)

	tok, _, err := m.Issue("u1", "admin", testNow)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, sig, _ := strings.Cut(tok, ".")

	forged, _ := json.Marshal(payload{Sub: "u2", Usr: "root", Exp: testNow.Add(time.Hour).UnixMilli(), Iat: testNow.UnixMilli()})
	if _, ok := m.Verify(base64.RawURLEncoding.EncodeToString(forged)+"."+sig, testNow); ok {
		t.Fatalf("forged payload accepted")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager([]byte("another secret"), 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	tok, _, err := other.Issue("u1", "admin", testNow)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, ok := m.Verify(tok, testNow); ok {
		t.Fatalf("token signed by another secret accepted")
	}
}

func TestVerify_Malformed(t *testing.T) {
	m := newTestManager(t)

	signed := func(raw string) string {
		enc := base64.RawURLEncoding.EncodeToString([]byte(raw))
		return enc + "." + m.sign(enc)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", "abcdef"},
		{"empty payload", ".abc"},
		{"empty signature", "abc."},
		{"only dot", "."},
		{"garbage", "!!!.???"},
		{"signed non-json", signed("not json")},
		{"signed empty object", signed("{}")},
		{"signed wrong types", signed(`{"sub":1,"usr":2,"exp":"x"}`)},
		{"signed bad base64", "***." + m.sign("***")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := m.Verify(tt.token, testNow); ok {
				t.Fatalf("expected invalid")
			}
		})
	}
}

func TestNewManager_RequiresSecret(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err != ErrSecretMissing {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}
