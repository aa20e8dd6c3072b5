package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"missioncontrol/cmd/security/token"
)

// MinSecretBytes is the shortest env-provided HMAC-SHA256 secret accepted
// without a warning. Measured in bytes since the key is used raw.
const MinSecretBytes = 32

// loadSigningSecret resolves the token signing secret: env override first,
// then <DataDir>/jwt-secret.key, generating it on first start.
//
// A storage failure is fatal unless AllowEphemeralSecret is set, in which
// case an in-memory secret is used and every session ends on restart.
func loadSigningSecret(cfg Config, log Logger) ([]byte, error) {
	override := token.SecretOverrideFromEnv()
	if override != "" && len(override) < MinSecretBytes {
		if cfg.RequireStrongSecret {
			return nil, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.SecretEnvKey, MinSecretBytes)
		}
		log.Warn("security.secret.weak", "min_bytes", MinSecretBytes, "bytes", len(override))
	}

	path := filepath.Join(cfg.DataDir, token.SecretFileName)
	secret, err := token.LoadOrCreateSecret(path, override)
	switch {
	case err == nil:
		if override != "" {
			log.Info("security.secret.source", "source", "env")
		} else {
			log.Info("security.secret.source", "source", "file", "path", path)
		}
		return secret, nil
	case errors.Is(err, token.ErrSecretStorage) && cfg.AllowEphemeralSecret:
		log.Warn("token.secret.ephemeral", "path", path, "err", err)
		return token.NewEphemeralSecret()
	default:
		return nil, err
	}
}
