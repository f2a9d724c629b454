package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/skillpiler/internal/model"
)

type sessionFile struct {
	Token           string   `yaml:"token"`
	IsAuthenticated bool     `yaml:"is_authenticated"`
	Username        string   `yaml:"username,omitempty"`
	Scopes          []string `yaml:"scopes,omitempty"`
}

// Store is the client-side auth state, persisted to a YAML file.
type Store struct {
	path string

	mu      sync.RWMutex
	session sessionFile
}

// LoadStore reads the session at path. A missing file yields a logged-out store.
func LoadStore(path string) (*Store, error) {
	s := &Store{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.session); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return s, nil
}

// Status returns the stored auth status.
func (s *Store) Status() model.AuthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.AuthStatus{
		IsAuthenticated: s.session.IsAuthenticated,
		Username:        s.session.Username,
		Scopes:          append([]string(nil), s.session.Scopes...),
	}
}

// Token returns the session token, empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

// Login stores a new session token with its status.
func (s *Store) Login(token string, status model.AuthStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sessionFile{
		Token:           token,
		IsAuthenticated: status.IsAuthenticated,
		Username:        status.Username,
		Scopes:          status.Scopes,
	}
	return s.saveLocked()
}

// SetAuthStatus refreshes the status while keeping the token. An
// unauthenticated status drops the token.
func (s *Store) SetAuthStatus(status model.AuthStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !status.IsAuthenticated {
		s.session = sessionFile{}
		return s.removeLocked()
	}
	s.session.IsAuthenticated = true
	s.session.Username = status.Username
	s.session.Scopes = status.Scopes
	return s.saveLocked()
}

// Logout clears the session and deletes the file.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sessionFile{}
	return s.removeLocked()
}

func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.session)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

func (s *Store) removeLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
