package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// SecretEnvKey is the env var name for the signing secret override.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "MC_TOKEN_SECRET"
	// LegacySecretEnvKey is honoured when SecretEnvKey is unset.
	// #nosec G101 -- not a credential; it's an environment variable name.
	LegacySecretEnvKey = "JWT_SECRET"

	// SecretFileName is the secret's file name inside the data directory.
	SecretFileName = "jwt-secret.key"

	secretBytes = 48
)

// SecretOverrideFromEnv returns the configured override, or "" when neither
// variable is set to a non-blank value. The value is returned verbatim.
func SecretOverrideFromEnv() string {
	for _, k := range []string{SecretEnvKey, LegacySecretEnvKey} {
		if v := os.Getenv(k); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// LoadOrCreateSecret returns the signing secret.
//
// Resolution order:
// - a non-blank override, verbatim
// - the trimmed contents of path, if non-empty
// - a freshly generated secret, written to path with mode 0600
//
// An existing secret file is never overwritten. Failures wrap ErrSecretStorage.
func LoadOrCreateSecret(path, override string) ([]byte, error) {
	if strings.TrimSpace(override) != "" {
		return []byte(override), nil
	}

	if s, err := readSecret(path); err != nil {
		return nil, err
	} else if s != nil {
		return s, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create dir: %v", ErrSecretStorage, err)
	}

	secret, err := NewEphemeralSecret()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		// Another process created it first; theirs wins.
		s, rerr := readSecret(path)
		if rerr != nil {
			return nil, rerr
		}
		if s == nil {
			return nil, fmt.Errorf("%w: %s exists but is empty", ErrSecretStorage, path)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: create: %v", ErrSecretStorage, err)
	}

	if _, err := f.Write(secret); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: write: %v", ErrSecretStorage, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: close: %v", ErrSecretStorage, err)
	}

	return secret, nil
}

// NewEphemeralSecret generates a secret without persisting it.
func NewEphemeralSecret() ([]byte, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("%w: random: %v", ErrSecretStorage, err)
	}
	return []byte(base64.RawURLEncoding.EncodeToString(raw)), nil
}

// readSecret returns (nil, nil) when the file is missing or blank.
func readSecret(path string) ([]byte, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path is operator configuration.
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", ErrSecretStorage, err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return nil, nil
	}
	return []byte(s), nil
}
