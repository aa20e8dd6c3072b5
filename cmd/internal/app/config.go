package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DataDir holds jwt-secret.key and, without a database, users.json.
	DataDir string

	// When set, accounts live in Postgres instead of users.json.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// DBSchema holds the users table; empty means the server's search_path.
	DBSchema string

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	TokenTTL time.Duration

	// If true, a secret that cannot be persisted is replaced by an in-memory
	// one (sessions end on restart) instead of failing startup.
	AllowEphemeralSecret bool

	// If true, an env-provided signing secret shorter than
	// MinSecretBytes aborts startup instead of logging a warning.
	RequireStrongSecret bool

	LoginSweepInterval time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("MC_HTTP_ADDR", "0.0.0.0:3333"),
		LogLevel:  EnvString("MC_LOG_LEVEL", "info"),
		LogFormat: EnvString("MC_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("MC_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("MC_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("MC_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("MC_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("MC_HTTP_MAX_HEADER_BYTES", 1<<20),

		DataDir: EnvString("MC_DATA_DIR", "data"),

		DatabaseURL: EnvString("MC_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("MC_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("MC_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("MC_DB_SCHEMA", ""),

		ReadinessRequireDB: EnvBool("MC_READINESS_REQUIRE_DB", false),

		TokenTTL: EnvDuration("MC_TOKEN_TTL", 7*24*time.Hour),

		AllowEphemeralSecret: EnvBool("MC_ALLOW_EPHEMERAL_SECRET", false),

		RequireStrongSecret: EnvBool("MC_REQUIRE_STRONG_SECRET", false),

		LoginSweepInterval: EnvDuration("MC_LOGIN_SWEEP_INTERVAL", time.Minute),
	}
}
