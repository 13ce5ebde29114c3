// Package user defines the durable account record and the store contract the
// identity engine mutates it through.
package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ProviderLocal marks accounts that authenticate with a password held here.
// Any other value names a federated identity provider.
const ProviderLocal = "local"

var (
	// ErrNotFound is returned when no user matches. Deleted and never-created
	// users are indistinguishable.
	ErrNotFound = errors.New("user not found or deleted")
	// ErrUsernameTaken is returned by Create and Update on a username clash.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken is returned by Create and Update on an email clash.
	ErrEmailTaken = errors.New("email already taken")
)

// User is the durable account. Username and Email are unique ignoring case.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Salt         string    `json:"salt,omitempty"`
	Role         string    `json:"role"`
	Provider     string    `json:"provider"`
	IsActive     bool      `json:"is_active"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
}

// IsLocal reports whether the account has a local password.
func (u User) IsLocal() bool {
	return u.Provider == "" || strings.EqualFold(u.Provider, ProviderLocal)
}

// Store is the durable user contract.
type Store interface {
	GetByID(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string, caseInsensitive bool) (User, error)
	GetByEmail(ctx context.Context, email string, caseInsensitive bool) (User, error)
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	Delete(ctx context.Context, id string) error
}
