package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore keeps the session credentials. AccessToken carries the JWT,
// RefreshToken the refresh credential.
type TokenStore interface {
	// Token returns the stored token, or nil when logged out.
	Token() (*oauth2.Token, error)
	SetToken(t *oauth2.Token) error
	Clear() error
}

// MemoryTokenStore keeps tokens for the life of the process.
type MemoryTokenStore struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

// NewMemoryTokenStore creates an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

func (s *MemoryTokenStore) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tok == nil {
		return nil, nil
	}
	t := *s.tok
	return &t, nil
}

func (s *MemoryTokenStore) SetToken(t *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	s.tok = &c
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	s.tok = nil
	s.mu.Unlock()
	return nil
}

// FileTokenStore persists tokens as JSON in a file only the owner can read.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

// NewFileTokenStore stores tokens at path. An empty path selects
// sispromo/token.json under the user config directory.
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		path = filepath.Join(dir, "sispromo", "token.json")
	}
	return &FileTokenStore{path: path}, nil
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string { return s.path }

func (s *FileTokenStore) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	var t oauth2.Token
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &t, nil
}

// SetToken writes atomically: a temp file in the same directory is renamed
// over the old one.
func (s *FileTokenStore) SetToken(t *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("token dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".token-*")
	if err != nil {
		return fmt.Errorf("token temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("token chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func defaultDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cache dir: %w", err)
	}
	return filepath.Join(dir, "sispromo"), nil
}
