// Package app wires the Mission Control server runtime: config, logging,
// credential storage, token signing, login rate limiting and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"missioncontrol/cmd/identity"
	authapi "missioncontrol/cmd/internal/auth/api"
	"missioncontrol/cmd/internal/auth/limiter"
	"missioncontrol/cmd/security/password"
	"missioncontrol/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the Mission Control server runtime. It owns the HTTP server, the DB
// pool when one is configured, and the login limiter sweeper.
type App struct {
	cfg Config
	log Logger

	dbPool *pgxpool.Pool
	store  identity.Store

	accounts *identity.Accounts
	tokens   *token.Manager
	limiter  *limiter.Limiter
	registry *prometheus.Registry

	auth *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
// A signing secret that cannot be loaded or persisted is fatal unless
// cfg.AllowEphemeralSecret is set.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	secret, err := loadSigningSecret(cfg, log)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewManager(secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	accounts, store, dbPool, err := openAccounts(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()
	lim := limiter.New(authCfg.Limiter)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := authapi.NewMetrics(registry, lim.Len)
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	auth, err := authapi.NewHandler(log, authCfg, accounts, tokens, lim, authapi.WithMetrics(metrics))
	if err != nil {
		closePool(dbPool)
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		dbPool:   dbPool,
		store:    store,
		accounts: accounts,
		tokens:   tokens,
		limiter:  lim,
		registry: registry,
		auth:     auth,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.store, a.registry, a.auth)
	return WithRequestID(WithRequestLogging(WithSecurityHeaders(mux), a.log))
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.dbPool != nil,
		"has_users", a.accounts.HasAccounts(ctx),
	)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		a.sweepLoop(sweepCtx, nonZeroDuration(a.cfg.LoginSweepInterval, time.Minute))
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case runErr = <-errCh:
		a.log.Error("server.fail", "err", runErr)
	}

	stopSweep()
	<-sweepDone

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			runErr = err
		}
	}

	closePool(a.dbPool)

	if runErr == nil {
		a.log.Info("server.stopped")
	}
	return runErr
}

// sweepLoop evicts stale limiter records until ctx ends.
func (a *App) sweepLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := a.limiter.Sweep(now); n > 0 {
				a.log.Debug("auth.limiter.sweep", "evicted", n, "tracked", a.limiter.Len())
			}
		}
	}
}

// openAccounts picks the credential backend: Postgres when MC_DATABASE_URL
// is set, users.json under DataDir otherwise. The returned pool is nil in
// file mode and owned by the caller.
func openAccounts(ctx context.Context, cfg Config, log Logger) (*identity.Accounts, identity.Store, *pgxpool.Pool, error) {
	pw, err := password.FromEnv()
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		store  identity.Store
		dbPool *pgxpool.Pool
	)

	if cfg.DatabaseURL == "" {
		fs, err := identity.NewFileStore(cfg.DataDir, log)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("store.file", "path", fs.Path())
		store = fs
	} else {
		dbPool, err = NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := identity.MigratePostgres(ctx, dbPool); err != nil {
			dbPool.Close()
			return nil, nil, nil, err
		}
		var opts []identity.PostgresOption
		if cfg.DBSchema != "" {
			opts = append(opts, identity.WithSchema(cfg.DBSchema))
		}
		ps, err := identity.NewPostgresStore(dbPool, opts...)
		if err != nil {
			dbPool.Close()
			return nil, nil, nil, err
		}
		log.Info("store.postgres", "schema", cfg.DBSchema)
		store = ps
	}

	accounts, err := identity.NewAccounts(store, pw, log)
	if err != nil {
		closePool(dbPool)
		return nil, nil, nil, err
	}
	return accounts, store, dbPool, nil
}

func closePool(p *pgxpool.Pool) {
	if p != nil {
		p.Close()
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
