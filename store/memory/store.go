// Package memory is an in-process implementation of the durable user and
// refresh-session contracts, for tests and single-node development.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
)

// Store keeps users and sessions in maps guarded by one mutex.
type Store struct {
	mu       sync.RWMutex
	users    map[string]user.User
	sessions map[string]refresh.Token
}

var errDuplicateID = errors.New("user id already exists")

var (
	_ user.Store    = (*Store)(nil)
	_ refresh.Store = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]user.User),
		sessions: make(map[string]refresh.Token),
	}
}

// GetByID implements user.Store.
func (s *Store) GetByID(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

// GetByUsername implements user.Store.
func (s *Store) GetByUsername(_ context.Context, username string, caseInsensitive bool) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(func(u user.User) bool { return match(u.Username, username, caseInsensitive) })
}

// GetByEmail implements user.Store.
func (s *Store) GetByEmail(_ context.Context, email string, caseInsensitive bool) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(func(u user.User) bool { return match(u.Email, email, caseInsensitive) })
}

// Create inserts u, rejecting a taken ID, username or email.
func (s *Store) Create(_ context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return errDuplicateID
	}
	if err := s.checkUniqueLocked(u); err != nil {
		return err
	}
	s.users[u.ID] = u
	return nil
}

// Update replaces the stored record with the same ID.
func (s *Store) Update(_ context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return user.ErrNotFound
	}
	if err := s.checkUniqueLocked(u); err != nil {
		return err
	}
	s.users[u.ID] = u
	return nil
}

// Delete removes the user and every session it owns.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(s.users, id)
	for sid, t := range s.sessions {
		if t.UserID == id {
			delete(s.sessions, sid)
		}
	}
	return nil
}

func (s *Store) findLocked(pred func(user.User) bool) (user.User, error) {
	for _, u := range s.users {
		if pred(u) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (s *Store) checkUniqueLocked(u user.User) error {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Username, u.Username) {
			return user.ErrUsernameTaken
		}
		if strings.EqualFold(other.Email, u.Email) {
			return user.ErrEmailTaken
		}
	}
	return nil
}

func match(stored, query string, caseInsensitive bool) bool {
	if caseInsensitive {
		return strings.EqualFold(stored, query)
	}
	return stored == query
}

// CountSessionsForUser implements refresh.Store.
func (s *Store) CountSessionsForUser(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessionsLocked(userID)), nil
}

// GetOldestSession implements refresh.Store.
func (s *Store) GetOldestSession(_ context.Context, userID string) (refresh.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.sessionsLocked(userID)
	if len(list) == 0 {
		return refresh.Token{}, refresh.ErrNotFound
	}
	return list[0], nil
}

// DeleteOldestSession implements refresh.Store.
func (s *Store) DeleteOldestSession(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.sessionsLocked(userID)
	if len(list) == 0 {
		return refresh.ErrNotFound
	}
	delete(s.sessions, list[0].ID)
	return nil
}

// CreateSession implements refresh.Store.
func (s *Store) CreateSession(_ context.Context, token refresh.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.Value = ""
	s.sessions[token.ID] = token
	return nil
}

// FindSession implements refresh.Store.
func (s *Store) FindSession(_ context.Context, userID, hash string) (refresh.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.sessions {
		if t.UserID == userID && t.Hash == hash {
			return t, nil
		}
	}
	return refresh.Token{}, refresh.ErrNotFound
}

// RotateSession swaps the hash only while oldHash is still current.
func (s *Store) RotateSession(_ context.Context, id, oldHash, newHash string, modified time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sessions[id]
	if !ok || t.Hash != oldHash {
		return refresh.ErrNotFound
	}
	t.Hash = newHash
	t.Modified = modified
	s.sessions[id] = t
	return nil
}

// DeleteSession implements refresh.Store.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return refresh.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// DeleteAllForUser removes every session of userID and reports how many.
func (s *Store) DeleteAllForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.sessions {
		if t.UserID == userID {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// sessionsLocked returns userID's sessions ordered oldest first.
func (s *Store) sessionsLocked(userID string) []refresh.Token {
	var out []refresh.Token
	for _, t := range s.sessions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}
