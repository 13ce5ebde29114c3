package goIdentity

import (
	"time"

	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
)

type (
	User              = user.User
	UserStore         = user.Store
	SessionStore      = refresh.Store
	RefreshToken      = refresh.Token
	ConfirmationToken = confirmation.Token
	TokenType         = confirmation.TokenType
	UpdateRequest     = confirmation.UpdateRequest
	Notifier          = notify.Notifier
)

// PendingUserUpdate is a staged identity change awaiting confirmation. ID is
// the target user. Salt is set only for password changes, where NewValue is
// the already derived hash.
type PendingUserUpdate struct {
	ID         string                 `json:"id"`
	NewValue   string                 `json:"new_value"`
	Salt       string                 `json:"salt,omitempty"`
	ChangeType confirmation.TokenType `json:"change_type"`
}

// LoginResponse is returned by every operation that opens or refreshes a
// session.
type LoginResponse struct {
	UserID       string `json:"user_id"`
	Bearer       string `json:"bearer"`
	RefreshToken string `json:"refresh_token"`
}

// RegistrationRequest carries a self-service sign-up.
type RegistrationRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is the verified content of a bearer credential.
type Identity struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}
