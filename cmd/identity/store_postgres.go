package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements credential persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Uniqueness is enforced by uq_users_username_norm, so concurrent inserts
//   from several processes still conflict correctly.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema qualifies the users table with schema. Without it the table is
// resolved through the connection's search_path, which is where
// MigratePostgres creates it.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM `+s.usersTable()).Scan(&n); err != nil {
		return 0, fmt.Errorf("identity.CountUsers: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) InsertUser(ctx context.Context, u User) error {
	const op = "identity.InsertUser"

	if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Username) == "" {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "id and username are required"}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.usersTable()+` (
		     id, username, username_norm, password_hash, salt, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID,
		u.Username,
		NormalizeUsername(u.Username),
		u.PasswordHash,
		u.Salt,
		u.CreatedAt,
	)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return ConflictError{Op: op, Field: "username"}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.FindUserByUsername"

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, salt, created_at
		   FROM `+s.usersTable()+`
		  WHERE username_norm = $1`,
		NormalizeUsername(username),
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// ---- helpers ----

func (s *PostgresStore) usersTable() string {
	if s.schema == "" {
		return pgx.Identifier{"users"}.Sanitize()
	}
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
