package refresh

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when no row matches.
var ErrNotFound = errors.New("refresh session not found")

// Token is one durable refresh session. Value is the plaintext and is only
// populated by Manager calls that mint it; stores persist Hash.
type Token struct {
	ID       string
	UserID   string
	Value    string
	Hash     string
	Expires  time.Time
	Created  time.Time
	Modified time.Time
}

// Expired reports whether the token is past its expiry at now. A token is
// still valid at the exact expiry instant.
func (t Token) Expired(now time.Time) bool {
	return now.After(t.Expires)
}

// Store is the durable session contract.
type Store interface {
	CountSessionsForUser(ctx context.Context, userID string) (int, error)
	// GetOldestSession returns the session with the smallest Created.
	GetOldestSession(ctx context.Context, userID string) (Token, error)
	DeleteOldestSession(ctx context.Context, userID string) error
	CreateSession(ctx context.Context, token Token) error
	FindSession(ctx context.Context, userID, hash string) (Token, error)
	// RotateSession replaces the hash of row id only while it still equals
	// oldHash. A lost race reports ErrNotFound.
	RotateSession(ctx context.Context, id, oldHash, newHash string, modified time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
}
