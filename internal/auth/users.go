// Package auth implements the JSON-file user store used for sign-up and
// sign-in.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("username already exists")
	ErrEmptyUsername      = errors.New("username is required")
	ErrEmptyPassword      = errors.New("password is required")
)

// User is one entry of the user file. Password holds a bcrypt hash, or a
// hex SHA-256 digest for accounts created before salted hashing.
type User struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type userFile struct {
	Users []User `json:"users"`
}

// Store keeps users in a JSON file of the form {"users": [...]}.
type Store struct {
	mu   sync.Mutex
	path string
	cost int
	// dummy is compared against on unknown usernames so that they cost
	// as much as a wrong password.
	dummy []byte
}

// Option configures a Store.
type Option func(*Store)

// WithCost sets the bcrypt cost for new hashes.
func WithCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

// NewStore returns a store backed by path, creating its directory.
func NewStore(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create users directory: %w", err)
	}
	s := &Store{path: path, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register adds a user with a bcrypt-hashed password.
func (s *Store) Register(ctx context.Context, username, password, email string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if password == "" {
		return ErrEmptyPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load(ctx)
	for _, u := range users {
		if u.Username == username {
			return ErrUserExists
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	users = append(users, User{Username: username, Password: string(hash), Email: strings.TrimSpace(email)})
	if err := s.save(users); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User registered", "username", username)
	return nil
}

// compareDummy runs one bcrypt comparison at the store cost. Callers hold s.mu.
func (s *Store) compareDummy(password string) {
	if s.dummy == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), s.cost)
		if err != nil {
			return
		}
		s.dummy = hash
	}
	_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
}

// Authenticate checks the password of username. Unknown users and wrong
// passwords both return ErrInvalidCredentials. A legacy SHA-256 hash is
// replaced by a bcrypt hash after a successful login.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.load(ctx)
	idx := -1
	for i, u := range users {
		if u.Username == username {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.compareDummy(password)
		slog.InfoContext(ctx, "Authentication failed")
		return User{}, ErrInvalidCredentials
	}

	u := users[idx]
	if isLegacyHash(u.Password) {
		if !legacyMatch(u.Password, password) {
			slog.InfoContext(ctx, "Authentication failed")
			return User{}, ErrInvalidCredentials
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to upgrade legacy password hash", "username", username, "error", err)
			return u, nil
		}
		users[idx].Password = string(hash)
		if err := s.save(users); err != nil {
			slog.ErrorContext(ctx, "Failed to persist upgraded password hash", "username", username, "error", err)
		} else {
			slog.InfoContext(ctx, "Upgraded legacy password hash", "username", username)
		}
		return users[idx], nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		slog.InfoContext(ctx, "Authentication failed")
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// LegacyHash returns the unsalted hex SHA-256 digest older user files store.
func LegacyHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func isLegacyHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

func legacyMatch(stored, password string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(LegacyHash(password))) == 1
}

func (s *Store) load(ctx context.Context) []User {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "Cannot read users file, treating as empty", "file", s.path, "error", err)
		}
		return nil
	}
	var f userFile
	if err := json.Unmarshal(raw, &f); err != nil {
		slog.WarnContext(ctx, "Corrupt users file, treating as empty", "file", s.path, "error", err)
		return nil
	}
	return f.Users
}

func (s *Store) save(users []User) error {
	if users == nil {
		users = []User{}
	}
	data, err := json.MarshalIndent(userFile{Users: users}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal users: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write users: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}
