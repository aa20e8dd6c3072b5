package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var configKeys = []string{
	"MC_HTTP_ADDR", "MC_LOG_LEVEL", "MC_LOG_FORMAT",
	"MC_HTTP_READ_HEADER_TIMEOUT", "MC_HTTP_READ_TIMEOUT", "MC_HTTP_WRITE_TIMEOUT",
	"MC_HTTP_IDLE_TIMEOUT", "MC_HTTP_MAX_HEADER_BYTES",
	"MC_DATA_DIR", "MC_DATABASE_URL", "MC_DB_MAX_CONNS", "MC_DB_MIN_CONNS", "MC_DB_SCHEMA",
	"MC_READINESS_REQUIRE_DB", "MC_TOKEN_TTL", "MC_ALLOW_EPHEMERAL_SECRET",
	"MC_REQUIRE_STRONG_SECRET", "MC_LOGIN_SWEEP_INTERVAL",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	want := Config{
		HTTPAddr:           "0.0.0.0:3333",
		LogLevel:           "info",
		LogFormat:          "json",
		ReadHeaderTimeout:  5 * time.Second,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		DataDir:            "data",
		DBMaxConns:         10,
		TokenTTL:           7 * 24 * time.Hour,
		LoginSweepInterval: time.Minute,
	}
	if diff := cmp.Diff(want, LoadConfig()); diff != "" {
		t.Fatalf("LoadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MC_HTTP_ADDR", "127.0.0.1:8080")
	t.Setenv("MC_LOG_FORMAT", "pretty")
	t.Setenv("MC_DATA_DIR", "/var/lib/mc")
	t.Setenv("MC_DATABASE_URL", "postgres://mc@localhost/mc")
	t.Setenv("MC_DB_MIN_CONNS", "2")
	t.Setenv("MC_DB_SCHEMA", "ops")
	t.Setenv("MC_TOKEN_TTL", "12h")
	t.Setenv("MC_ALLOW_EPHEMERAL_SECRET", "true")
	t.Setenv("MC_LOGIN_SWEEP_INTERVAL", "30s")

	got := LoadConfig()

	if got.HTTPAddr != "127.0.0.1:8080" || got.LogFormat != "pretty" || got.DataDir != "/var/lib/mc" {
		t.Fatalf("string overrides not applied: %+v", got)
	}
	if got.DatabaseURL != "postgres://mc@localhost/mc" || got.DBMinConns != 2 || got.DBSchema != "ops" {
		t.Fatalf("db overrides not applied: %+v", got)
	}
	if got.TokenTTL != 12*time.Hour || got.LoginSweepInterval != 30*time.Second {
		t.Fatalf("duration overrides not applied: %+v", got)
	}
	if !got.AllowEphemeralSecret {
		t.Fatalf("AllowEphemeralSecret not applied")
	}
}

func TestEnvHelpers_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("MC_TEST_INT", "-3")
	t.Setenv("MC_TEST_INT32", "x")
	t.Setenv("MC_TEST_BOOL", "maybe")
	t.Setenv("MC_TEST_DUR", "0s")

	if got := EnvInt("MC_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt=%d want 7", got)
	}
	if got := EnvInt32("MC_TEST_INT32", 4); got != 4 {
		t.Fatalf("EnvInt32=%d want 4", got)
	}
	if got := EnvBool("MC_TEST_BOOL", true); !got {
		t.Fatalf("EnvBool=false want true")
	}
	if got := EnvDuration("MC_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("EnvDuration=%v want 1s", got)
	}
}
