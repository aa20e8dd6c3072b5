package authapi

import (
	"context"
	"net/http"

	"missioncontrol/cmd/security/token"
)

type identityKey struct{}

// IdentityFromContext returns the identity RequireAuth attached to ctx.
func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(token.Identity)
	return id, ok
}

// RequireAuth rejects requests without a valid session token. Missing,
// malformed, forged and expired tokens all get the same 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.authenticate(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func (h *Handler) authenticate(r *http.Request) (token.Identity, bool) {
	raw := h.sessionToken(r)
	if raw == "" {
		h.metrics.verify("missing")
		return token.Identity{}, false
	}
	id, ok := h.tokens.Verify(raw, h.now())
	if !ok {
		h.metrics.verify("invalid")
		return token.Identity{}, false
	}
	h.metrics.verify("valid")
	return id, true
}
