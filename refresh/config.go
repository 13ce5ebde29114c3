package refresh

import (
	"errors"
	"time"
)

// Config controls session lifetime and the per-user session cap.
type Config struct {
	// MaxSessions is the number of live refresh tokens a user may hold before
	// the oldest is evicted on the next login.
	MaxSessions int
	// TTL is the absolute lifetime of a refresh token. Rotation does not
	// extend it.
	TTL time.Duration
	Now func() time.Time
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions: 5,
		TTL:         30 * 24 * time.Hour,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.MaxSessions <= 0 {
		return errors.New("refresh MaxSessions must be > 0")
	}
	if c.TTL <= 0 {
		return errors.New("refresh TTL must be > 0")
	}
	return nil
}
