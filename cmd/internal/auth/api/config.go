package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"missioncontrol/cmd/internal/auth/limiter"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	Limiter limiter.Config
}

// DefaultConfig returns the settings used when no env overrides apply.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   64 << 10,
		CookieName:     "mc_session",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteStrictMode,
		Limiter: limiter.Config{
			MaxAttempts: limiter.DefaultMaxAttempts,
			Window:      limiter.DefaultWindow,
			Lockout:     limiter.DefaultLockout,
		},
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()

	cfg := Config{
		TrustProxy:     envBool("MC_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("MC_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		CookieName:     envString("MC_AUTH_COOKIE_NAME", def.CookieName),
		CookiePath:     envString("MC_AUTH_COOKIE_PATH", def.CookiePath),
		CookieDomain:   envString("MC_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("MC_COOKIE_SECURE", false),
		CookieSameSite: parseSameSite(envString("MC_AUTH_COOKIE_SAMESITE", "strict")),
		Limiter: limiter.Config{
			MaxAttempts: envInt("MC_LOGIN_MAX_ATTEMPTS", def.Limiter.MaxAttempts),
			Window:      envDuration("MC_LOGIN_WINDOW", def.Limiter.Window),
			Lockout:     envDuration("MC_LOGIN_LOCKOUT", def.Limiter.Lockout),
		},
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteStrictMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
