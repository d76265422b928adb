// Package credentials persists the signed-in user's token and display name.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

const (
	// KeyAccessToken holds the bearer token.
	KeyAccessToken = "access_token"
	// KeyFullName holds the display name returned at sign-in.
	KeyFullName = "full_name"

	defaultFileName = "credentials.toml"
	fileMode        = 0o600
)

var (
	ErrPathRequired = errors.New("credentials path is required")
	ErrUnknownKey   = errors.New("unknown credentials key")
)

// Credentials is the persisted sign-in state.
type Credentials struct {
	AccessToken string `toml:"access_token"`
	FullName    string `toml:"full_name"`
}

// Authenticated reports whether a token is present.
func (c Credentials) Authenticated() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

// Store is a file-backed key/value store with fixed keys.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore constructs a store backed by the TOML file at path.
func NewStore(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, ErrPathRequired
	}
	return &Store{path: p}, nil
}

// DefaultPath returns the credentials file under a config directory.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, defaultFileName)
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the stored credentials. A missing file yields empty credentials.
func (s *Store) Load(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save replaces the stored credentials.
func (s *Store) Save(ctx context.Context, creds Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(creds)
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	creds, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	switch key {
	case KeyAccessToken:
		return creds.AccessToken, nil
	case KeyFullName:
		return creds.FullName, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set stores value under key, keeping the other key intact.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.loadLocked()
	if err != nil {
		return err
	}
	switch key {
	case KeyAccessToken:
		creds.AccessToken = value
	case KeyFullName:
		creds.FullName = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.saveLocked(creds)
}

// Clear removes every stored key.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials file %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) loadLocked() (Credentials, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("read credentials file %s: %w", s.path, err)
	}

	var creds Credentials
	if err := toml.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials file %s: %w", s.path, err)
	}
	return creds, nil
}

func (s *Store) saveLocked(creds Credentials) error {
	raw, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create credentials temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace credentials file %s: %w", s.path, err)
	}
	return nil
}
