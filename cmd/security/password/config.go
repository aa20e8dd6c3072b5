package password

import (
	"fmt"
	"math"
	"math/bits"
	"os"
	"strconv"
	"strings"
)

// ScryptParams controls scrypt hashing cost.
// The defaults match Node's crypto.scryptSync so hashes written by the
// previous dashboard backend keep verifying.
type ScryptParams struct {
	N          int
	R          int
	P          int
	SaltLength int
	KeyLength  int
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
}

// MinLengthFloor is the lowest accepted password minimum. Configuration can
// raise the minimum but never lower it.
const MinLengthFloor = 8

// Config is the single configuration surface for this package.
type Config struct {
	Params ScryptParams
	Policy Policy
}

// DefaultConfig returns the baseline used by the dashboard.
func DefaultConfig() Config {
	return Config{
		Params: ScryptParams{
			N:          16384,
			R:          8,
			P:          1,
			SaltLength: 16,
			KeyLength:  64,
		},
		Policy: Policy{
			MinLength: MinLengthFloor,
			MaxLength: 1024,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - MC_PASSWORD_MIN_LEN (at least MinLengthFloor)
// - MC_PASSWORD_MAX_LEN
// - MC_SCRYPT_N (power of two)
// - MC_SCRYPT_R
// - MC_SCRYPT_P
// - MC_SCRYPT_SALT_LEN
// - MC_SCRYPT_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("MC_PASSWORD_MIN_LEN"); ok {
		n, err := atoiRange(v, MinLengthFloor, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("MC_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("MC_PASSWORD_MAX_LEN"); ok {
		n, err := atoiRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("MC_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("MC_SCRYPT_N"); ok {
		n, err := atoiRange(v, 2, 1<<20)
		if err != nil {
			return Config{}, fmt.Errorf("MC_SCRYPT_N: %w", err)
		}
		if bits.OnesCount(uint(n)) != 1 {
			return Config{}, fmt.Errorf("MC_SCRYPT_N: must be a power of two")
		}
		cfg.Params.N = n
	}

	if v, ok := os.LookupEnv("MC_SCRYPT_R"); ok {
		n, err := atoiRange(v, 1, 32)
		if err != nil {
			return Config{}, fmt.Errorf("MC_SCRYPT_R: %w", err)
		}
		cfg.Params.R = n
	}

	if v, ok := os.LookupEnv("MC_SCRYPT_P"); ok {
		n, err := atoiRange(v, 1, 16)
		if err != nil {
			return Config{}, fmt.Errorf("MC_SCRYPT_P: %w", err)
		}
		cfg.Params.P = n
	}

	if v, ok := os.LookupEnv("MC_SCRYPT_SALT_LEN"); ok {
		n, err := atoiRange(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("MC_SCRYPT_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = n
	}

	if v, ok := os.LookupEnv("MC_SCRYPT_KEY_LEN"); ok {
		n, err := atoiRange(v, 16, maxKeyLength)
		if err != nil {
			return Config{}, fmt.Errorf("MC_SCRYPT_KEY_LEN: %w", err)
		}
		cfg.Params.KeyLength = n
	}

	// Final sanity.
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}
	if int64(cfg.Params.R)*int64(cfg.Params.P) >= 1<<30 || cfg.Params.N > math.MaxInt32/128/cfg.Params.R {
		return Config{}, fmt.Errorf("scrypt params invalid: N=%d r=%d p=%d", cfg.Params.N, cfg.Params.R, cfg.Params.P)
	}

	return cfg, nil
}

func atoiRange(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}
