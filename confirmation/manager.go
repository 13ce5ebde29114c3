package confirmation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goIdentity/cache"
	"github.com/MrEthical07/goIdentity/internal"
)

var (
	// ErrTokenNotFound covers every "no usable token" outcome: malformed
	// value, missing entry, type mismatch, or a pair whose halves disagree.
	ErrTokenNotFound = errors.New("confirmation token not found")
	// ErrUnknownType is returned when asked to issue a non-issuable type.
	ErrUnknownType = errors.New("unknown confirmation token type")
	// ErrUnavailable wraps cache failures.
	ErrUnavailable = errors.New("confirmation cache unavailable")
)

// Manager issues, resolves, rotates and deletes confirmation tokens. It holds
// no locks; concurrent callers are reconciled by type-checked reads.
type Manager struct {
	cache  cache.Cache
	config Config
}

// NewManager validates cfg and binds it to c.
func NewManager(c cache.Cache, cfg Config) (*Manager, error) {
	if c == nil {
		return nil, errors.New("confirmation manager requires a cache")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cache: c, config: cfg.clone()}, nil
}

// Config returns a copy of the manager configuration.
func (m *Manager) Config() Config {
	return m.config.clone()
}

func (m *Manager) now() time.Time {
	if m.config.Now != nil {
		return m.config.Now()
	}
	return time.Now()
}

func (m *Manager) valueKey(t TokenType, value string) string {
	return cache.Key(m.config.Prefix, t.String(), value)
}

func (m *Manager) userKey(t TokenType, userID string) string {
	return cache.Key(m.config.Prefix, t.String(), userID)
}

// GetToken resolves value for type t. The token is returned only when the
// value index holds a record of type t and the user index still points at
// the same value.
func (m *Manager) GetToken(ctx context.Context, value string, t TokenType) (Token, error) {
	if !t.Issuable() || !internal.IsValidToken(value) {
		return Token{}, ErrTokenNotFound
	}

	data, err := m.cache.Get(ctx, m.valueKey(t, value))
	if err != nil {
		return Token{}, m.readErr(err)
	}
	token, err := decodeToken(data)
	if err != nil {
		return Token{}, ErrTokenNotFound
	}
	if token.Type != t || token.Value != value || token.UserID == "" {
		return Token{}, ErrTokenNotFound
	}

	current, err := m.cache.Get(ctx, m.userKey(t, token.UserID))
	if err != nil {
		return Token{}, m.readErr(err)
	}
	if string(current) != value {
		return Token{}, ErrTokenNotFound
	}

	return token, nil
}

// GetTokenByUserID resolves the current token of type t for userID through
// the user index.
func (m *Manager) GetTokenByUserID(ctx context.Context, userID string, t TokenType) (Token, error) {
	if !t.Issuable() || userID == "" {
		return Token{}, ErrTokenNotFound
	}

	value, err := m.cache.Get(ctx, m.userKey(t, userID))
	if err != nil {
		return Token{}, m.readErr(err)
	}

	token, err := m.GetToken(ctx, string(value), t)
	if err != nil {
		return Token{}, err
	}
	if token.UserID != userID {
		return Token{}, ErrTokenNotFound
	}
	return token, nil
}

// CreateToken issues a fresh token of type t for userID and writes both
// index entries. A previous token of the same type for the same user stops
// resolving because its user index is overwritten.
func (m *Manager) CreateToken(ctx context.Context, userID string, t TokenType) (Token, error) {
	if !t.Issuable() {
		return Token{}, ErrUnknownType
	}
	if userID == "" {
		return Token{}, ErrTokenNotFound
	}
	return m.issue(ctx, userID, t, 0, m.now())
}

// CreateLinkedToken issues a token of type next for prev's user that keeps
// prev's AttemptCount and Modified, so throttling carries across the hand-off
// (EmailChangeOld to EmailChangeNew).
func (m *Manager) CreateLinkedToken(ctx context.Context, prev Token, next TokenType) (Token, error) {
	if !next.Issuable() {
		return Token{}, ErrUnknownType
	}
	if prev.UserID == "" {
		return Token{}, ErrTokenNotFound
	}
	return m.issue(ctx, prev.UserID, next, prev.AttemptCount, prev.Modified)
}

func (m *Manager) issue(ctx context.Context, userID string, t TokenType, attempts int, modified time.Time) (Token, error) {
	value, err := internal.NewTokenValue(userID, m.now())
	if err != nil {
		return Token{}, err
	}

	token := Token{
		UserID:       userID,
		Value:        value,
		Type:         t,
		AttemptCount: attempts,
		Modified:     modified,
	}
	if err := m.pairFor(token).write(ctx, token, m.config.TTLFor(t)); err != nil {
		return Token{}, err
	}
	return token, nil
}

// UpdateToken is the resend primitive. Both existing index entries are
// deleted first and must both be removed, otherwise the call fails. The
// attempt counter restarts when the token is older than the cooldown window
// and is then incremented; the token gets a new value and Modified = now.
func (m *Manager) UpdateToken(ctx context.Context, token Token) (Token, error) {
	if !token.Type.Issuable() {
		return Token{}, ErrUnknownType
	}
	if token.UserID == "" || token.Value == "" {
		return Token{}, ErrTokenNotFound
	}

	if err := m.pairFor(token).remove(ctx); err != nil {
		return Token{}, err
	}

	now := m.now()
	next := token
	if now.Sub(token.Modified) > m.config.Cooldown {
		next.AttemptCount = 0
	}
	next.AttemptCount++
	next.Modified = now

	value, err := internal.NewTokenValue(token.UserID, now)
	if err != nil {
		return Token{}, err
	}
	next.Value = value

	if err := m.pairFor(next).write(ctx, next, m.config.TTLFor(next.Type)); err != nil {
		return Token{}, err
	}
	return next, nil
}

// DeleteToken removes both index entries. A partial deletion reports
// ErrIndexInconsistent and leaves the remaining half in place.
func (m *Manager) DeleteToken(ctx context.Context, token Token) error {
	if !token.Type.Issuable() || token.UserID == "" || token.Value == "" {
		return ErrTokenNotFound
	}
	return m.pairFor(token).remove(ctx)
}

// ClaimToken removes the value index of token. Of several concurrent claims
// of the same token exactly one succeeds; the others get ErrTokenNotFound.
// The user index is removed afterwards on a best-effort basis, since a user
// index without its value index already resolves as no token.
func (m *Manager) ClaimToken(ctx context.Context, token Token) error {
	if !token.Type.Issuable() || token.UserID == "" || token.Value == "" {
		return ErrTokenNotFound
	}
	p := m.pairFor(token)
	removed, err := p.cache.Delete(ctx, p.valueKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !removed {
		return ErrTokenNotFound
	}
	_, _ = p.cache.Delete(ctx, p.userKey)
	return nil
}

// RestoreToken writes back a token taken by ClaimToken. The token gets the
// full TTL of its type.
func (m *Manager) RestoreToken(ctx context.Context, token Token) error {
	if !token.Type.Issuable() {
		return ErrUnknownType
	}
	if token.UserID == "" || token.Value == "" {
		return ErrTokenNotFound
	}
	return m.pairFor(token).write(ctx, token, m.config.TTLFor(token.Type))
}

func (m *Manager) readErr(err error) error {
	if errors.Is(err, cache.ErrMiss) {
		return ErrTokenNotFound
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
