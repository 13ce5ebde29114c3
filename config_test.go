package goIdentity

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/user"
)

// nopUserStore satisfies user.Store only.
type nopUserStore struct{}

func (nopUserStore) GetByID(context.Context, string) (User, error) { return User{}, user.ErrNotFound }
func (nopUserStore) GetByUsername(context.Context, string, bool) (User, error) {
	return User{}, user.ErrNotFound
}
func (nopUserStore) GetByEmail(context.Context, string, bool) (User, error) {
	return User{}, user.ErrNotFound
}
func (nopUserStore) Create(context.Context, User) error   { return nil }
func (nopUserStore) Update(context.Context, User) error   { return nil }
func (nopUserStore) Delete(context.Context, string) error { return nil }

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("01234567890123456789012345678901")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with key",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "jwt missing key",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "ed25519 needs public key",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
			},
			wantValid: false,
		},
		{
			name: "access ttl zero",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 0
			},
			wantValid: false,
		},
		{
			name: "session cap zero",
			mutate: func(c *Config) {
				c.Session.MaxSessionsPerUser = 0
			},
			wantValid: false,
		},
		{
			name: "pending prefix collides with confirmation prefix",
			mutate: func(c *Config) {
				c.Pending.Prefix = c.Confirmation.Prefix
			},
			wantValid: false,
		},
		{
			name: "reservation prefix collides with pending prefix",
			mutate: func(c *Config) {
				c.Pending.ReservationPrefix = c.Pending.Prefix
			},
			wantValid: false,
		},
		{
			name: "pending ttl shorter than a token",
			mutate: func(c *Config) {
				c.Pending.TTL = time.Hour
			},
			wantValid: false,
		},
		{
			name: "pending ttl covers shortened tokens",
			mutate: func(c *Config) {
				c.Pending.TTL = time.Hour
				c.Confirmation.TTL[confirmation.RegistrationConfirmation] = time.Hour
			},
			wantValid: true,
		},
		{
			name: "confirmation max attempts zero",
			mutate: func(c *Config) {
				c.Confirmation.MaxAttempts = 0
			},
			wantValid: false,
		},
		{
			name: "argon2 memory too low",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "negative entropy",
			mutate: func(c *Config) {
				c.Password.MinEntropyBits = -1
			},
			wantValid: false,
		},
		{
			name: "relative base url",
			mutate: func(c *Config) {
				c.Links.BaseURL = "/confirm"
			},
			wantValid: false,
		},
		{
			name: "path without slash",
			mutate: func(c *Config) {
				c.Links.ConfirmPath = "confirm"
			},
			wantValid: false,
		},
		{
			name: "empty hierarchy",
			mutate: func(c *Config) {
				c.Roles.Hierarchy = nil
			},
			wantValid: false,
		},
		{
			name: "duplicate role",
			mutate: func(c *Config) {
				c.Roles.Hierarchy = []string{"member", "admin", "member"}
			},
			wantValid: false,
		},
		{
			name: "default role outside hierarchy",
			mutate: func(c *Config) {
				c.Roles.Default = "guest"
			},
			wantValid: false,
		},
		{
			name: "events enabled without buffer",
			mutate: func(c *Config) {
				c.Events.Enabled = true
				c.Events.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "negative login budget",
			mutate: func(c *Config) {
				c.Limits.MaxLoginAttempts = -1
			},
			wantValid: false,
		},
		{
			name: "login budget without window",
			mutate: func(c *Config) {
				c.Limits.LoginWindow = 0
			},
			wantValid: false,
		},
		{
			name: "limiters disabled",
			mutate: func(c *Config) {
				c.Limits = LimitsConfig{}
			},
			wantValid: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildConfigImmutabilityAgainstExternalMutation(t *testing.T) {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := testEngineConfig(clock)

	h := newHarness(t, func(c *Config) {
		*c = cfg
	})

	before := h.engine.config.JWT.PrivateKey[0]
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.Roles.Hierarchy[0] = "changed"

	if h.engine.config.JWT.PrivateKey[0] != before {
		t.Fatal("engine config key mutated from external config after build")
	}
	if h.engine.config.Roles.Hierarchy[0] != "member" {
		t.Fatal("engine role hierarchy mutated from external config after build")
	}
}

func TestBuilderRequirements(t *testing.T) {
	cfg := validTestConfig()

	if _, err := New().WithConfig(cfg).Build(); err == nil {
		t.Fatal("expected missing user store error")
	}

	b := New().WithConfig(cfg).WithUserStore(nopUserStore{})
	if _, err := b.Build(); err == nil {
		t.Fatal("expected missing session store error")
	}

	bad := cfg
	bad.Roles.Hierarchy = nil
	if _, err := New().WithConfig(bad).Build(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New()
	b.built = true
	if _, err := b.Build(); err == nil {
		t.Fatal("expected reused builder to fail")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	h := newHarness(t)
	report := h.engine.SecurityReport()

	if report.SigningAlgorithm != "hs256" {
		t.Fatalf("expected hs256 signing algorithm in report, got %s", report.SigningAlgorithm)
	}
	if report.MaxSessionsPerUser != 5 {
		t.Fatalf("expected session cap 5, got %d", report.MaxSessionsPerUser)
	}
	if !report.RateLimitingActive || !report.EventsEnabled {
		t.Fatalf("expected limiters and events active, got %+v", report)
	}
	if report.ResendThrottle.MaxAttempts != 3 || report.ResendThrottle.MinInterval != 10*time.Second {
		t.Fatalf("unexpected throttle report %+v", report.ResendThrottle)
	}
	if len(report.Roles) != 3 || report.Roles[2] != "admin" {
		t.Fatalf("unexpected roles %v", report.Roles)
	}
	if !containsCode(report.LintCodes, "argon2_memory_low") {
		t.Fatalf("expected lint codes in report, got %v", report.LintCodes)
	}
}
