package authapi

import (
	"time"

	"missioncontrol/cmd/identity"
	"missioncontrol/cmd/security/token"
)

// Audit events go to the structured log; there is no audit table.

func (h *Handler) auditLoginFailed(addr, username string) {
	h.log.Warn("auth.login.fail", "addr", addr, "username", username)
}

func (h *Handler) auditLoginSuccess(addr string, u identity.PublicUser) {
	h.log.Info("auth.login.success", "addr", addr, "user_id", u.ID, "username", u.Username)
}

func (h *Handler) auditLoginRateLimited(addr string, retryAfter time.Duration) {
	h.log.Warn("auth.login.rate_limited", "addr", addr, "retry_after_s", int64(retryAfter/time.Second))
}

func (h *Handler) auditLockout(addr string, retryAfter time.Duration) {
	h.log.Warn("auth.login.lockout", "addr", addr, "locked_for_s", int64(retryAfter/time.Second))
}

func (h *Handler) auditSetup(u identity.PublicUser, addr string) {
	h.log.Info("auth.setup.success", "addr", addr, "user_id", u.ID, "username", u.Username)
}

func (h *Handler) auditLogout(addr string, id token.Identity) {
	h.log.Info("auth.logout", "addr", addr, "user_id", id.SubjectID)
}
