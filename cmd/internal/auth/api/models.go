package authapi

import (
	"time"

	"missioncontrol/cmd/identity"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type statusResponse struct {
	HasUsers bool `json:"hasUsers"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// sessionResponse carries no token: the credential travels only in the
// HttpOnly cookie, out of reach of page scripts.
type sessionResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(u identity.PublicUser) userResponse {
	return userResponse{ID: u.ID, Username: u.Username}
}
