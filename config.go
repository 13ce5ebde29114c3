package goIdentity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/confirmation"
)

// Config is the complete engine configuration. It is copied into the Engine
// at Build time; later changes to the caller's value have no effect.
type Config struct {
	JWT          JWTConfig
	Session      SessionConfig
	Confirmation ConfirmationConfig
	Pending      PendingConfig
	Password     PasswordConfig
	Links        LinksConfig
	Roles        RolesConfig
	Events       EventsConfig
	Metrics      MetricsConfig
	Limits       LimitsConfig

	// Now overrides the clock of every manager. Nil means time.Now.
	Now func() time.Time
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the bearer credential.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures refresh-token sessions.
type SessionConfig struct {
	MaxSessionsPerUser int
	// RefreshTTL is absolute; rotation does not extend it.
	RefreshTTL time.Duration
}

/*
====================================
CONFIRMATION CONFIG
====================================
*/

// ConfirmationConfig configures confirmation tokens and resend throttling.
type ConfirmationConfig struct {
	Prefix      string
	TTL         map[confirmation.TokenType]time.Duration
	DefaultTTL  time.Duration
	MinInterval time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

// PendingConfig configures staged changes and uniqueness reservations.
type PendingConfig struct {
	Prefix            string
	ReservationPrefix string
	// TTL must outlive every confirmation token, otherwise a token could
	// resolve after its staged change is gone.
	TTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig configures argon2id and the strength policy.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// MinEntropyBits is the policy floor. Zero disables the entropy check.
	MinEntropyBits float64
	UpgradeOnLogin bool
}

/*
====================================
LINK CONFIG
====================================
*/

// LinksConfig builds confirmation links as
// {BaseURL}{Path}?token={token}&type={type}.
type LinksConfig struct {
	BaseURL           string
	ConfirmPath       string
	RegistrationPath  string
	PasswordResetPath string
}

// RolesConfig lists the known roles from least to most privileged.
type RolesConfig struct {
	Default   string
	Hierarchy []string
}

// EventsConfig configures the account event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the bearer latency
// histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LIMITS CONFIG
====================================
*/

// LimitsConfig configures the Redis fixed-window limiters. A zero budget
// disables that limiter.
type LimitsConfig struct {
	EnableIPThrottle   bool
	MaxLoginAttempts   int
	LoginWindow        time.Duration
	MaxRefreshAttempts int
	RefreshWindow      time.Duration

	ConfirmationWindow         time.Duration
	MaxConfirmationRequests    int
	MaxConfirmationRedemptions int
}

// DefaultConfig returns production defaults. JWT keys must still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	ct := confirmation.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
		},
		Session: SessionConfig{
			MaxSessionsPerUser: 5,
			RefreshTTL:         30 * 24 * time.Hour,
		},
		Confirmation: ConfirmationConfig{
			Prefix:      ct.Prefix,
			TTL:         ct.TTL,
			DefaultTTL:  ct.DefaultTTL,
			MinInterval: ct.MinInterval,
			MaxAttempts: ct.MaxAttempts,
			Cooldown:    ct.Cooldown,
		},
		Pending: PendingConfig{
			Prefix:            "pu",
			ReservationPrefix: "rsv",
			TTL:               24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinEntropyBits: 60,
			UpgradeOnLogin: true,
		},
		Links: LinksConfig{
			BaseURL:           "http://localhost:8080",
			ConfirmPath:       "/confirm",
			RegistrationPath:  "/register/confirm",
			PasswordResetPath: "/password/reset",
		},
		Roles: RolesConfig{
			Default:   "member",
			Hierarchy: []string{"member", "moderator", "admin"},
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Limits: LimitsConfig{
			EnableIPThrottle:           true,
			MaxLoginAttempts:           5,
			LoginWindow:                15 * time.Minute,
			MaxRefreshAttempts:         20,
			RefreshWindow:              time.Minute,
			ConfirmationWindow:         time.Hour,
			MaxConfirmationRequests:    10,
			MaxConfirmationRedemptions: 30,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.Confirmation.TTL != nil {
		out.Confirmation.TTL = make(map[confirmation.TokenType]time.Duration, len(cfg.Confirmation.TTL))
		for k, v := range cfg.Confirmation.TTL {
			out.Confirmation.TTL[k] = v
		}
	}
	if cfg.Roles.Hierarchy != nil {
		out.Roles.Hierarchy = append([]string(nil), cfg.Roles.Hierarchy...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) confirmationConfig() confirmation.Config {
	return confirmation.Config{
		Prefix:      c.Confirmation.Prefix,
		TTL:         c.Confirmation.TTL,
		DefaultTTL:  c.Confirmation.DefaultTTL,
		MinInterval: c.Confirmation.MinInterval,
		MaxAttempts: c.Confirmation.MaxAttempts,
		Cooldown:    c.Confirmation.Cooldown,
		Now:         c.Now,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}
	if len(c.JWT.PrivateKey) == 0 {
		return fmt.Errorf("%s requires PrivateKey", c.JWT.SigningMethod)
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}

	// Session
	if c.Session.MaxSessionsPerUser <= 0 {
		return errors.New("Session MaxSessionsPerUser must be > 0")
	}
	if c.Session.RefreshTTL <= 0 {
		return errors.New("Session RefreshTTL must be > 0")
	}

	// Confirmation
	if err := c.confirmationConfig().Validate(); err != nil {
		return err
	}

	// Pending
	if c.Pending.Prefix == "" || c.Pending.ReservationPrefix == "" {
		return errors.New("Pending prefixes must not be empty")
	}
	if c.Pending.Prefix == c.Pending.ReservationPrefix ||
		c.Pending.Prefix == c.Confirmation.Prefix ||
		c.Pending.ReservationPrefix == c.Confirmation.Prefix {
		return errors.New("Pending, reservation and confirmation prefixes must differ")
	}
	ct := c.confirmationConfig()
	for _, t := range confirmation.AllTokenTypes() {
		if c.Pending.TTL < ct.TTLFor(t) {
			return fmt.Errorf("Pending TTL must be >= the %s token TTL", t)
		}
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinEntropyBits < 0 {
		return errors.New("Password MinEntropyBits must be >= 0")
	}

	// Links
	base, err := url.Parse(c.Links.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("Links BaseURL must be an absolute URL")
	}
	for _, p := range []string{c.Links.ConfirmPath, c.Links.RegistrationPath, c.Links.PasswordResetPath} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Links paths must start with /")
		}
	}

	// Roles
	if len(c.Roles.Hierarchy) == 0 {
		return errors.New("Roles Hierarchy must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Roles.Hierarchy))
	for _, r := range c.Roles.Hierarchy {
		if r == "" {
			return errors.New("Roles Hierarchy contains an empty role")
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("Roles Hierarchy lists %q twice", r)
		}
		seen[r] = struct{}{}
	}
	if _, ok := seen[c.Roles.Default]; !ok {
		return errors.New("Roles Default must be part of the hierarchy")
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when enabled")
	}

	// Limits
	if c.Limits.MaxLoginAttempts < 0 || c.Limits.MaxRefreshAttempts < 0 ||
		c.Limits.MaxConfirmationRequests < 0 || c.Limits.MaxConfirmationRedemptions < 0 {
		return errors.New("Limits budgets must be >= 0")
	}
	if c.Limits.MaxLoginAttempts > 0 && c.Limits.LoginWindow <= 0 {
		return errors.New("Limits LoginWindow must be > 0")
	}
	if c.Limits.MaxRefreshAttempts > 0 && c.Limits.RefreshWindow <= 0 {
		return errors.New("Limits RefreshWindow must be > 0")
	}
	if (c.Limits.MaxConfirmationRequests > 0 || c.Limits.MaxConfirmationRedemptions > 0) &&
		c.Limits.ConfirmationWindow <= 0 {
		return errors.New("Limits ConfirmationWindow must be > 0")
	}

	return nil
}
