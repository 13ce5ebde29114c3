package confirmation

import (
	"errors"
	"fmt"
	"time"
)

// Config drives one Manager. Tests construct independent instances with
// different thresholds; nothing here is process-wide.
type Config struct {
	// Prefix is the cache domain prefix for both index entries.
	Prefix string
	// TTL maps each token type to its lifetime. Missing types use DefaultTTL.
	TTL        map[TokenType]time.Duration
	DefaultTTL time.Duration

	// MinInterval is the minimum gap between two sends of the same token.
	MinInterval time.Duration
	// MaxAttempts is the number of sends allowed inside one Cooldown window.
	MaxAttempts int
	// Cooldown is the window after which the attempt counter resets.
	Cooldown time.Duration

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Prefix: "ct",
		TTL: map[TokenType]time.Duration{
			RegistrationConfirmation: 24 * time.Hour,
			EmailChangeOld:           time.Hour,
			EmailChangeNew:           time.Hour,
			PasswordChange:           30 * time.Minute,
			PasswordReset:            30 * time.Minute,
			UsernameChange:           30 * time.Minute,
			RoleChange:               30 * time.Minute,
		},
		DefaultTTL:  30 * time.Minute,
		MinInterval: time.Minute,
		MaxAttempts: 3,
		Cooldown:    time.Hour,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Prefix == "" {
		return errors.New("confirmation prefix must not be empty")
	}
	if c.DefaultTTL <= 0 {
		return errors.New("confirmation DefaultTTL must be > 0")
	}
	for t, ttl := range c.TTL {
		if !t.Issuable() {
			return fmt.Errorf("confirmation TTL configured for non-issuable type %s", t)
		}
		if ttl <= 0 {
			return fmt.Errorf("confirmation TTL for %s must be > 0", t)
		}
	}
	if c.MinInterval < 0 {
		return errors.New("confirmation MinInterval must be >= 0")
	}
	if c.MaxAttempts <= 0 {
		return errors.New("confirmation MaxAttempts must be > 0")
	}
	if c.Cooldown < c.MinInterval {
		return errors.New("confirmation Cooldown must be >= MinInterval")
	}
	return nil
}

// TTLFor returns the lifetime of tokens of type t.
func (c Config) TTLFor(t TokenType) time.Duration {
	if ttl, ok := c.TTL[t]; ok && ttl > 0 {
		return ttl
	}
	return c.DefaultTTL
}

func (c Config) clone() Config {
	out := c
	if c.TTL != nil {
		out.TTL = make(map[TokenType]time.Duration, len(c.TTL))
		for k, v := range c.TTL {
			out.TTL[k] = v
		}
	}
	return out
}
