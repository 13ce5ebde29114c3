package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/google/uuid"
)

var (
	// ErrInvalidInput covers absent arguments and lookups that match nothing.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTokenExpired is returned after an expired token has been removed.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnavailable wraps Store failures.
	ErrUnavailable = errors.New("refresh store unavailable")
)

// Manager creates, caps, rotates and validates refresh tokens.
type Manager struct {
	store  Store
	config Config
}

// NewManager validates cfg and binds it to store.
func NewManager(store Store, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("refresh manager requires a store")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{store: store, config: cfg}, nil
}

// Config returns the manager configuration.
func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) now() time.Time {
	if m.config.Now != nil {
		return m.config.Now()
	}
	return time.Now()
}

// CreateRefreshToken mints an unsaved token for userID.
func (m *Manager) CreateRefreshToken(userID string) (Token, error) {
	if userID == "" {
		return Token{}, ErrInvalidInput
	}

	now := m.now()
	value, err := internal.NewTokenValue(userID, now)
	if err != nil {
		return Token{}, err
	}

	return Token{
		ID:       uuid.NewString(),
		UserID:   userID,
		Value:    value,
		Hash:     internal.HashValue(value),
		Expires:  now.Add(m.config.TTL),
		Created:  now,
		Modified: now,
	}, nil
}

// AddToken persists token. When the user already holds MaxSessions or more,
// the oldest session is evicted exactly once before the insert.
func (m *Manager) AddToken(ctx context.Context, token Token) error {
	if token.ID == "" || token.UserID == "" || token.Hash == "" {
		return ErrInvalidInput
	}

	count, err := m.store.CountSessionsForUser(ctx, token.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= m.config.MaxSessions {
		if err := m.store.DeleteOldestSession(ctx, token.UserID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if err := m.store.CreateSession(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// UpdateTokenDb rotates token in place and returns the new plaintext value.
// The previous value stops matching as soon as the row is updated; a
// concurrent rotation of the same value loses with ErrInvalidInput.
func (m *Manager) UpdateTokenDb(ctx context.Context, token Token) (string, error) {
	oldHash := token.Hash
	if oldHash == "" && token.Value != "" {
		oldHash = internal.HashValue(token.Value)
	}
	if token.ID == "" || token.UserID == "" || oldHash == "" {
		return "", ErrInvalidInput
	}

	now := m.now()
	value, err := internal.NewTokenValue(token.UserID, now)
	if err != nil {
		return "", err
	}

	if err := m.store.RotateSession(ctx, token.ID, oldHash, internal.HashValue(value), now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrInvalidInput
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

// FindToken looks a session up by owner and plaintext value without any
// expiry handling.
func (m *Manager) FindToken(ctx context.Context, userID, value string) (Token, error) {
	if userID == "" || value == "" {
		return Token{}, ErrInvalidInput
	}

	token, err := m.store.FindSession(ctx, userID, internal.HashValue(value))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrNotFound
		}
		return Token{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	token.Value = value
	return token, nil
}

// ValidateRefreshToken resolves (userID, value). Unknown pairs fail with
// ErrInvalidInput; an expired row is deleted and reported as ErrTokenExpired.
func (m *Manager) ValidateRefreshToken(ctx context.Context, userID, value string) (Token, error) {
	token, err := m.FindToken(ctx, userID, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrInvalidInput
		}
		return Token{}, err
	}

	if token.Expired(m.now()) {
		// Best effort; the caller sees the expiry either way.
		_ = m.store.DeleteSession(ctx, token.ID)
		return Token{}, ErrTokenExpired
	}
	return token, nil
}

// DeleteToken removes one session row.
func (m *Manager) DeleteToken(ctx context.Context, token Token) error {
	if token.ID == "" {
		return ErrInvalidInput
	}
	if err := m.store.DeleteSession(ctx, token.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteAllForUser removes every session of userID and returns how many were
// removed.
func (m *Manager) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidInput
	}
	n, err := m.store.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n, nil
}
