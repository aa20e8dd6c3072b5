package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"missioncontrol/cmd/identity"
	"missioncontrol/cmd/security/token"
)

// testConfig isolates a test from the host environment and keeps scrypt cheap.
func testConfig(t *testing.T) Config {
	t.Helper()

	for _, k := range []string{token.SecretEnvKey, token.LegacySecretEnvKey, "MC_DATABASE_URL"} {
		t.Setenv(k, "")
	}
	t.Setenv("MC_SCRYPT_N", "1024")

	cfg := LoadConfig()
	cfg.DataDir = t.TempDir()
	return cfg
}

func discardLogger() Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()

	a, err := New(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func serve(h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNew_PersistsSigningSecret(t *testing.T) {
	cfg := testConfig(t)

	first := newTestApp(t, cfg)

	raw, err := os.ReadFile(filepath.Join(cfg.DataDir, token.SecretFileName))
	if err != nil {
		t.Fatalf("read secret: %v", err)
	}
	if got := len(strings.TrimSpace(string(raw))); got != 64 {
		t.Fatalf("secret length=%d want 64", got)
	}

	now := time.Now()
	tok, _, err := first.tokens.Issue("01J0000000000000000000000", "ops", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// A restart must keep existing sessions valid.
	second := newTestApp(t, cfg)
	if _, ok := second.tokens.Verify(tok, now); !ok {
		t.Fatalf("token issued before restart did not verify")
	}
}

func TestNew_BlankSecretFileIsFatal(t *testing.T) {
	cfg := testConfig(t)

	path := filepath.Join(cfg.DataDir, token.SecretFileName)
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := New(context.Background(), cfg, discardLogger())
	if !errors.Is(err, token.ErrSecretStorage) {
		t.Fatalf("err=%v want ErrSecretStorage", err)
	}

	cfg.AllowEphemeralSecret = true
	newTestApp(t, cfg)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "  \n" {
		t.Fatalf("secret file was rewritten: %q", raw)
	}
}

func TestNew_ShortEnvSecret(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv(token.SecretEnvKey, "short")

	newTestApp(t, cfg)

	cfg.RequireStrongSecret = true
	if _, err := New(context.Background(), cfg, discardLogger()); err == nil {
		t.Fatalf("expected policy error for short secret")
	}
}

func TestHandler_OperatorEndpoints(t *testing.T) {
	cfg := testConfig(t)
	h := newTestApp(t, cfg).Handler()

	rr := serve(h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id")
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing security headers: %q", got)
	}

	rr = serve(h, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz without db: %d", rr.Code)
	}

	rr = serve(h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "mc_auth_tracked_addresses") {
		t.Fatalf("metrics output missing auth gauge")
	}
}

func TestHandler_ReadyzRequiresDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReadinessRequireDB = true
	h := newTestApp(t, cfg).Handler()

	rr := serve(h, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz=%d want 503", rr.Code)
	}
}

func TestHandler_GuardsDashboardAPI(t *testing.T) {
	cfg := testConfig(t)
	h := newTestApp(t, cfg).Handler()

	rr := serve(h, http.MethodGet, "/api/agents", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated=%d want 401", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("cache-control=%q want no-store", got)
	}

	rr = serve(h, http.MethodPost, "/api/auth/setup", `{"username":"ops","password":"correct horse"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("setup=%d body=%s", rr.Code, rr.Body.String())
	}
	var session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "mc_session" {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatalf("setup did not set a session cookie")
	}

	rr = serve(h, http.MethodGet, "/api/agents", "", session)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("authenticated unknown route=%d want 404", rr.Code)
	}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != "not_found" || body.Error == "" {
		t.Fatalf("body=%+v want code not_found with a message", body)
	}

	rr = serve(h, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), `mc_auth_setup_total{result="success"} 1`) {
		t.Fatalf("setup metric not recorded:\n%s", rr.Body.String())
	}
}

func TestSweepLoop_EvictsIdleAddresses(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	a.limiter.RecordFailure("192.0.2.10", time.Now().Add(-time.Hour))
	if a.limiter.Len() != 1 {
		t.Fatalf("Len=%d want 1", a.limiter.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.sweepLoop(ctx, 5*time.Millisecond)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for a.limiter.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if a.limiter.Len() != 0 {
		t.Fatalf("idle address not swept")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTPAddr = "127.0.0.1:0"
	a := newTestApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := a.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

type unreadyStore struct{ identity.Store }

func (unreadyStore) CountUsers(context.Context) (int, error) {
	return 0, errors.New("relation \"users\" does not exist")
}

func TestReadyz_CredentialStoreMustAnswer(t *testing.T) {
	mux := http.NewServeMux()
	registerHTTP(mux, discardLogger(), Config{}, nil, unreadyStore{}, nil, nil)

	rr := serve(mux, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz=%d want 503", rr.Code)
	}
}
