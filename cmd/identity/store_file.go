package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// UsersFileName is the credential file's name inside the data directory.
const UsersFileName = "users.json"

// FileStore keeps all users in a single JSON file that is rewritten whole on
// every insert. It suits the handful of accounts a dashboard has.
//
// Design notes:
// - A mutex serialises every read-modify-write inside this process.
// - Writes go through a temp file + rename so a crash never leaves a torn file.
// - An unreadable or corrupt file reads as "no accounts" so first-run setup
//   stays reachable; the bad file is moved aside before the next write.
type FileStore struct {
	path string
	log  *slog.Logger
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore returns a store rooted at dataDir, creating the directory
// (mode 0700) if needed.
func NewFileStore(dataDir string, log *slog.Logger) (*FileStore, error) {
	if dataDir == "" {
		return nil, OpError{Op: "identity.NewFileStore", Kind: ErrInvalidInput, Msg: "empty data dir"}
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: create data dir: %w", err)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileStore{
		path: filepath.Join(dataDir, UsersFileName),
		log:  log,
		now:  time.Now,
	}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) CountUsers(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, _ := s.load()
	return len(users), nil
}

func (s *FileStore) InsertUser(ctx context.Context, u User) error {
	const op = "identity.FileStore.InsertUser"

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, corrupt := s.load()

	norm := NormalizeUsername(u.Username)
	for _, existing := range users {
		if NormalizeUsername(existing.Username) == norm {
			return ConflictError{Op: op, Field: "username"}
		}
	}

	if corrupt {
		s.quarantine()
	}

	users = append(users, u)
	return s.save(users)
}

func (s *FileStore) FindUserByUsername(ctx context.Context, username string) (User, error) {
	const op = "identity.FileStore.FindUserByUsername"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, _ := s.load()

	norm := NormalizeUsername(username)
	for _, u := range users {
		if NormalizeUsername(u.Username) == norm {
			return u, nil
		}
	}
	return User{}, NotFoundError{Op: op, Resource: "user"}
}

// load returns the stored users. Failures degrade to an empty list; corrupt
// reports whether the file exists but could not be used.
func (s *FileStore) load() (users []User, corrupt bool) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false
	}
	if err != nil {
		s.log.Warn("identity.users.read.fail", "path", s.path, "err", err)
		return nil, true
	}
	if err := json.Unmarshal(b, &users); err != nil {
		s.log.Warn("identity.users.read.fail", "path", s.path, "err", err)
		return nil, true
	}
	return users, false
}

// quarantine moves an unusable users file aside instead of overwriting it.
func (s *FileStore) quarantine() {
	dst := s.path + ".corrupt-" + strconv.FormatInt(s.now().Unix(), 10)
	if err := os.Rename(s.path, dst); err != nil {
		s.log.Warn("identity.users.quarantine.fail", "path", s.path, "err", err)
		return
	}
	s.log.Warn("identity.users.quarantined", "path", s.path, "moved_to", dst)
}

func (s *FileStore) save(users []User) error {
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("identity: encode users: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("identity: write users: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("identity: write users: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("identity: write users: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("identity: write users: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("identity: write users: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("identity: write users: %w", err)
	}
	return nil
}
