package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"missioncontrol/cmd/identity"
	authapi "missioncontrol/cmd/internal/auth/api"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	store identity.Store,
	registry *prometheus.Registry,
	auth *authapi.Handler,
) {
	dbEnabled := dbPool != nil

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		// Ready means logins can be answered: the users table must be queryable.
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			_, err := store.CountUsers(ctx)
			cancel()
			if err != nil {
				http.Error(w, "credential store not ready", http.StatusServiceUnavailable)
				log.Info("readyz.store.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog: slogErrorLog{log: log},
		}))
	}

	if auth != nil {
		auth.Register(mux)
		// Everything else under /api is dashboard data and needs a session.
		mux.Handle("/api/", auth.RequireAuth(http.HandlerFunc(apiNotFound)))
	}
}

func apiNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "no such endpoint",
		"code":  "not_found",
	})
}

// slogErrorLog adapts the app logger to promhttp.Logger.
type slogErrorLog struct{ log Logger }

func (l slogErrorLog) Println(v ...any) {
	l.log.Error("metrics.serve.fail", "err", v)
}
