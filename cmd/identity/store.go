package identity

import (
	"context"
	"time"
)

// User is a stored account. Records are never mutated after creation.
//
// The JSON field names are the users.json on-disk format.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	Salt         string    `json:"salt"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public returns the identity tuple safe to hand to callers.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}

// PublicUser is the public identity of an account.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Store is the credential persistence boundary.
type Store interface {
	CountUsers(ctx context.Context) (int, error)

	// InsertUser persists u. It returns ConflictError{Field: "username"} when
	// a user with the same normalized username exists.
	InsertUser(ctx context.Context, u User) error

	// FindUserByUsername matches case-insensitively and returns NotFoundError
	// when no user matches.
	FindUserByUsername(ctx context.Context, username string) (User, error)
}
