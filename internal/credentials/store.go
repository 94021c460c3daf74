// Package credentials holds the signed-in user and session token.
//
// The Store keeps the credentials in memory and writes every change through
// to a durable key/value Storage so that a restarted process can restore the
// session with CheckAuthStatus. It never talks to the network.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// Storage keys, matching what the browser client kept in localStorage.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

// ErrNotFound is returned by Storage.GetItem for a missing key.
var ErrNotFound = errors.New("storage item not found")

// Storage is the durable key/value backend of the Store.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Store is the process-wide credential state. Safe for concurrent use.
type Store struct {
	storage Storage

	mu    sync.RWMutex
	user  *domain.User
	token string
}

// New returns a Store backed by storage. The store starts signed out; call
// CheckAuthStatus to restore a persisted session.
func New(storage Storage) *Store {
	return &Store{storage: storage}
}

// SetCredentials stores user and token and marks the session authenticated.
// The password is never persisted.
func (s *Store) SetCredentials(ctx context.Context, user domain.User, token string) error {
	user = user.Public()
	b, err := json.Marshal(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.storage.SetItem(ctx, KeyToken, token); err != nil {
		return err
	}
	if err := s.storage.SetItem(ctx, KeyUser, string(b)); err != nil {
		return err
	}
	s.user = &user
	s.token = token
	return nil
}

// ClearCredentials removes user and token from memory and storage.
// Memory is cleared even when storage fails.
func (s *Store) ClearCredentials(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	return errors.Join(
		s.storage.RemoveItem(ctx, KeyToken),
		s.storage.RemoveItem(ctx, KeyUser),
	)
}

// CheckAuthStatus reloads the credentials from storage. A malformed stored
// user is discarded and treated as signed out.
func (s *Store) CheckAuthStatus(ctx context.Context) error {
	token, err := s.storage.GetItem(ctx, KeyToken)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	user, err := s.loadUser(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
	return nil
}

func (s *Store) loadUser(ctx context.Context) (*domain.User, error) {
	raw, err := s.storage.GetItem(ctx, KeyUser)
	if errors.Is(err, ErrNotFound) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		log.Warn().Err(err).Msg("discarding malformed stored user")
		if rmErr := s.storage.RemoveItem(ctx, KeyUser); rmErr != nil {
			return nil, rmErr
		}
		return nil, nil
	}
	return &u, nil
}

// UpdateUser merges patch into the current user and re-persists it.
// It is a no-op when nobody is signed in.
func (s *Store) UpdateUser(ctx context.Context, patch domain.UserPatch) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, nil
	}
	merged := patch.Apply(*s.user)
	b, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	if err := s.storage.SetItem(ctx, KeyUser, string(b)); err != nil {
		return nil, err
	}
	s.user = &merged
	out := merged
	return &out, nil
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// UserID returns the signed-in user's id, or "".
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Token returns the current session token, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether both a token and a user are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}
