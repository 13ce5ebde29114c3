package confirmation

import "time"

// TokenType names the account mutation a confirmation token gates. The set is
// closed; Unknown is the zero value and is never issued.
type TokenType uint8

const (
	Unknown TokenType = iota
	RegistrationConfirmation
	EmailChangeOld
	EmailChangeNew
	PasswordChange
	PasswordReset
	UsernameChange
	RoleChange
	tokenTypeCount
)

var tokenTypeNames = [tokenTypeCount]string{
	Unknown:                  "Unknown",
	RegistrationConfirmation: "RegistrationConfirmation",
	EmailChangeOld:           "EmailChangeOld",
	EmailChangeNew:           "EmailChangeNew",
	PasswordChange:           "PasswordChange",
	PasswordReset:            "PasswordReset",
	UsernameChange:           "UsernameChange",
	RoleChange:               "RoleChange",
}

// String returns the name used in cache keys and confirmation links.
func (t TokenType) String() string {
	if t >= tokenTypeCount {
		return tokenTypeNames[Unknown]
	}
	return tokenTypeNames[t]
}

// Issuable reports whether tokens of this type may be created.
func (t TokenType) Issuable() bool {
	return t > Unknown && t < tokenTypeCount
}

// ParseTokenType maps a name back to its TokenType; unrecognised names
// yield Unknown.
func ParseTokenType(name string) TokenType {
	for i, n := range tokenTypeNames {
		if n == name {
			return TokenType(i)
		}
	}
	return Unknown
}

// AllTokenTypes lists every issuable type.
func AllTokenTypes() []TokenType {
	out := make([]TokenType, 0, int(tokenTypeCount)-1)
	for t := RegistrationConfirmation; t < tokenTypeCount; t++ {
		out = append(out, t)
	}
	return out
}

// Token is a cache-resident, single-purpose confirmation token.
type Token struct {
	UserID       string
	Value        string
	Type         TokenType
	AttemptCount int
	Modified     time.Time
}

// UpdateRequest carries the identity fields a user asked to change. An empty
// field means "not requested".
type UpdateRequest struct {
	Username        string `json:"username,omitempty"`
	Email           string `json:"email,omitempty"`
	Password        string `json:"password,omitempty"`
	CurrentPassword string `json:"current_password,omitempty"`
}
