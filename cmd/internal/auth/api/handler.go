package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"missioncontrol/cmd/identity"
	"missioncontrol/cmd/internal/auth/limiter"
	"missioncontrol/cmd/security/token"
)

// Accounts is the credential service the handlers depend on.
type Accounts interface {
	HasAccounts(ctx context.Context) bool
	Setup(ctx context.Context, username, password string) (identity.PublicUser, error)
	Authenticate(ctx context.Context, username, password string) (identity.PublicUser, bool)
}

// Handler wires HTTP auth endpoints to the account, token and limiter services.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts Accounts
	tokens   *token.Manager
	limiter  *limiter.Limiter
	metrics  *Metrics

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// WithClock overrides the time source used for rate limiting and tokens.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts Accounts, tokens *token.Manager, lim *limiter.Limiter, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if accounts == nil {
		return nil, errors.New("auth: nil accounts")
	}
	if tokens == nil {
		return nil, errors.New("auth: nil token manager")
	}
	if lim == nil {
		lim = limiter.New(cfg.Limiter)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = DefaultConfig().CookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		accounts: accounts,
		tokens:   tokens,
		limiter:  lim,
		now:      func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/status", h.handleStatus)
	mux.HandleFunc("/api/auth/setup", h.handleSetup)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.Handle("/api/auth/me", h.RequireAuth(http.HandlerFunc(h.handleMe)))
}

// ---- handlers ----

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{HasUsers: h.accounts.HasAccounts(r.Context())})
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.accounts.HasAccounts(ctx) {
		h.metrics.setup("complete")
		writeError(w, http.StatusForbidden, "setup_complete", "setup already completed")
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.setup("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		h.metrics.setup("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	u, err := h.accounts.Setup(ctx, req.Username, req.Password)
	if err != nil {
		h.writeAccountError(w, err)
		return
	}

	h.metrics.setup("success")
	h.auditSetup(u, clientAddr(r, h.cfg.TrustProxy))

	h.startSession(w, http.StatusCreated, u)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	now := h.now()
	addr := clientAddr(r, h.cfg.TrustProxy)

	// Throttle before any hashing work.
	if d := h.limiter.Check(addr, now); !d.Allowed {
		h.metrics.login("rate_limited")
		h.auditLoginRateLimited(addr, d.RetryAfter)
		writeRateLimited(w, d)
		return
	}

	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.login("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		h.metrics.login("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	u, ok := h.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if !ok {
		d := h.limiter.RecordFailure(addr, now)
		h.metrics.login("invalid")
		h.auditLoginFailed(addr, req.Username)
		if !d.Allowed {
			h.metrics.lockout()
			h.auditLockout(addr, d.RetryAfter)
		}
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
		return
	}

	h.limiter.Clear(addr)
	h.metrics.login("success")
	h.auditLoginSuccess(addr, u)

	h.startSession(w, http.StatusOK, u)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Tokens are stateless; logging out only drops the cookie.
	if id, ok := h.authenticate(r); ok {
		h.auditLogout(clientAddr(r, h.cfg.TrustProxy), id)
	}
	h.expireSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: userResponse{ID: id.SubjectID, Username: id.SubjectName}})
}

// ---- helpers ----

func (h *Handler) startSession(w http.ResponseWriter, status int, u identity.PublicUser) {
	tok, exp, err := h.tokens.Issue(u.ID, u.Username, h.now())
	if err != nil {
		h.log.Error("auth.token.issue.fail", "err", err, "user_id", u.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.setSessionCookie(w, tok, exp)
	writeJSON(w, status, sessionResponse{
		User:      toUserResponse(u),
		ExpiresAt: exp,
	})
}

func (h *Handler) writeAccountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrSetupComplete):
		h.metrics.setup("complete")
		writeError(w, http.StatusForbidden, "setup_complete", "setup already completed")
	case errors.Is(err, identity.ErrDuplicateUsername):
		h.metrics.setup("conflict")
		writeError(w, http.StatusConflict, "duplicate_username", "username already exists")
	case errors.Is(err, identity.ErrWeakPassword):
		h.metrics.setup("bad_request")
		writeError(w, http.StatusBadRequest, "weak_password", opMessage(err, "password too weak"))
	case identity.IsInvalidInput(err):
		h.metrics.setup("bad_request")
		writeError(w, http.StatusBadRequest, "invalid_request", opMessage(err, "invalid request"))
	default:
		h.metrics.setup("error")
		h.log.Error("auth.setup.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// opMessage surfaces an OpError's human-readable detail.
func opMessage(err error, def string) string {
	var oe identity.OpError
	if errors.As(err, &oe) && oe.Msg != "" {
		return oe.Msg
	}
	return def
}

// clientAddr returns the limiter key for r. Forwarding headers are honoured
// only when the proxy in front is trusted, and then only the hop that proxy
// appended: everything left of it is client-supplied.
func clientAddr(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := lastForwardedIP(r.Header.Values("X-Forwarded-For")); ip != nil {
			return ip.String()
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	if v := strings.TrimSpace(r.RemoteAddr); v != "" {
		return v
	}
	return "unknown"
}

// lastForwardedIP parses the rightmost X-Forwarded-For entry across all
// header lines. A malformed rightmost entry yields nil rather than falling
// back to an entry further left.
func lastForwardedIP(values []string) net.IP {
	if len(values) == 0 {
		return nil
	}
	parts := strings.Split(values[len(values)-1], ",")
	return net.ParseIP(strings.TrimSpace(parts[len(parts)-1]))
}
