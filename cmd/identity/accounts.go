package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"missioncontrol/cmd/security/password"
)

const maxUsernameLength = 128

// Accounts is the credential service used by the HTTP layer and the CLI.
//
// Account creation is serialised by a mutex so the duplicate check and the
// insert cannot interleave within one process.
type Accounts struct {
	store Store
	pw    password.Config
	log   *slog.Logger
	now   func() time.Time

	mu sync.Mutex

	// dummy is verified against when a username is unknown, so a miss costs
	// the same scrypt work as a wrong password.
	dummy password.Hashed
}

// AccountsOption configures Accounts.
type AccountsOption func(*Accounts)

// WithClock overrides the time source used for CreatedAt and ids.
func WithClock(now func() time.Time) AccountsOption {
	return func(a *Accounts) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccounts wires the service. It derives one dummy hash up front, which
// costs a single scrypt run.
func NewAccounts(store Store, pw password.Config, log *slog.Logger, opts ...AccountsOption) (*Accounts, error) {
	if store == nil {
		return nil, fmt.Errorf("identity: nil store")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	a := &Accounts{
		store: store,
		pw:    pw,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("identity: dummy seed: %w", err)
	}
	dummy, err := pw.Hash(hex.EncodeToString(seed), "")
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	a.dummy = dummy

	return a, nil
}

// HasAccounts reports whether at least one account exists. Store failures
// read as "no accounts".
func (a *Accounts) HasAccounts(ctx context.Context) bool {
	n, err := a.store.CountUsers(ctx)
	if err != nil {
		a.log.Warn("identity.accounts.count.fail", "err", err)
		return false
	}
	return n > 0
}

// CreateAccount validates and persists a new account.
//
// Errors:
// - ErrInvalidInput: blank or oversized username, oversized password
// - ErrDuplicateUsername (a ConflictError): name taken, ignoring case
// - ErrWeakPassword: shorter than the policy minimum; nothing is persisted
func (a *Accounts) CreateAccount(ctx context.Context, username, pw string) (PublicUser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.createLocked(ctx, "identity.CreateAccount", username, pw)
}

// Setup creates the first account. Once any account exists it fails with
// ErrSetupComplete.
func (a *Accounts) Setup(ctx context.Context, username, pw string) (PublicUser, error) {
	const op = "identity.Setup"

	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.store.CountUsers(ctx)
	if err != nil {
		return PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return PublicUser{}, OpError{Op: op, Kind: ErrSetupComplete, Msg: "an account already exists"}
	}
	return a.createLocked(ctx, op, username, pw)
}

func (a *Accounts) createLocked(ctx context.Context, op, username, pw string) (PublicUser, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return PublicUser{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username is required"}
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return PublicUser{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "username too long"}
	}

	// Duplicate before strength.
	_, err := a.store.FindUserByUsername(ctx, username)
	switch {
	case err == nil:
		return PublicUser{}, ConflictError{Op: op, Field: "username"}
	case !IsNotFound(err):
		return PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := a.pw.Validate(pw); err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return PublicUser{}, OpError{
				Op:   op,
				Kind: ErrWeakPassword,
				Msg:  fmt.Sprintf("password must be at least %d characters", max(a.pw.Policy.MinLength, password.MinLengthFloor)),
			}
		}
		return PublicUser{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}

	hashed, err := a.pw.Hash(pw, "")
	if err != nil {
		return PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	now := a.now()
	id, err := NewULID(now)
	if err != nil {
		return PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	u := User{
		ID:           id,
		Username:     username,
		PasswordHash: hashed.Hash,
		Salt:         hashed.Salt,
		CreatedAt:    now,
	}
	if err := a.store.InsertUser(ctx, u); err != nil {
		return PublicUser{}, err
	}

	a.log.Info("identity.account.created", "user_id", u.ID, "username", u.Username)
	return u.Public(), nil
}

// Authenticate returns the matching account and true when username (ignoring
// case) and password match. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (a *Accounts) Authenticate(ctx context.Context, username, pw string) (PublicUser, bool) {
	u, err := a.store.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !IsNotFound(err) {
			a.log.Warn("identity.accounts.lookup.fail", "err", err)
		}
		_ = a.pw.Verify(pw, a.dummy.Hash, a.dummy.Salt)
		return PublicUser{}, false
	}

	if !a.pw.Verify(pw, u.PasswordHash, u.Salt) {
		return PublicUser{}, false
	}
	return u.Public(), true
}
