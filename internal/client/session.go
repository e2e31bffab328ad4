package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoSession is returned by a SessionStore that holds nothing.
var ErrNoSession = errors.New("no saved session")

// SessionData is what survives between runs.
type SessionData struct {
	User  AuthUser `json:"user"`
	Token string   `json:"token"`
}

type SessionStore interface {
	Load() (*SessionData, error)
	Save(data *SessionData) error
	Clear() error
}

// Session is the signed-in identity shared by every screen of a front end.
// It is also the client's token source.
type Session struct {
	client *Client
	store  SessionStore

	mu   sync.RWMutex
	data *SessionData
}

// NewSession binds a session to c, so c authenticates with whatever token
// the session currently holds.
func NewSession(c *Client, store SessionStore) *Session {
	s := &Session{client: c, store: store}
	c.tokens = s
	return s
}

// Restore loads a persisted session. It reports false when there is none.
func (s *Session) Restore() (bool, error) {
	data, err := s.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return false, nil
		}
		return false, fmt.Errorf("restore session: %w", err)
	}
	if data.Token == "" {
		return false, nil
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return true, nil
}

func (s *Session) Login(ctx context.Context, email, password string) (*AuthUser, error) {
	user, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.persist(user)
}

func (s *Session) Register(ctx context.Context, name, email, password string) (*AuthUser, error) {
	user, err := s.client.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	return s.persist(user)
}

func (s *Session) persist(user *AuthUser) (*AuthUser, error) {
	data := &SessionData{
		User:  AuthUser{ID: user.ID, Name: user.Name, Email: user.Email},
		Token: user.Token,
	}
	if err := s.store.Save(data); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	u := data.User
	return &u, nil
}

func (s *Session) Logout() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, if any.
func (s *Session) CurrentUser() (AuthUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return AuthUser{}, false
	}
	return s.data.User, true
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return ""
	}
	return s.data.Token
}

// FileStore keeps the session as a JSON file readable only by its owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Load() (*SessionData, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	var data SessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return &data, nil
}

func (f *FileStore) Save(data *SessionData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	// CreateTemp opens with 0600
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ SessionStore = (*FileStore)(nil)
