package goIdentity

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
type SecurityReport struct {
	SigningAlgorithm   string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	MaxSessionsPerUser int
	Argon2             PasswordConfigReport
	MinEntropyBits     float64
	ResendThrottle     ResendThrottleReport
	RateLimitingActive bool
	IPThrottleActive   bool
	EventsEnabled      bool
	Roles              []string
	LintCodes          []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type ResendThrottleReport struct {
	MinInterval time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	limits := e.config.Limits
	rateLimiting := e.rateLimiter != nil && (limits.MaxLoginAttempts > 0 || limits.MaxRefreshAttempts > 0) ||
		e.confirmLimiter != nil && (limits.MaxConfirmationRequests > 0 || limits.MaxConfirmationRedemptions > 0)

	return SecurityReport{
		SigningAlgorithm:   e.config.JWT.SigningMethod,
		AccessTTL:          e.config.JWT.AccessTTL,
		RefreshTTL:         e.config.Session.RefreshTTL,
		MaxSessionsPerUser: e.config.Session.MaxSessionsPerUser,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		MinEntropyBits: e.config.Password.MinEntropyBits,
		ResendThrottle: ResendThrottleReport{
			MinInterval: e.config.Confirmation.MinInterval,
			MaxAttempts: e.config.Confirmation.MaxAttempts,
			Cooldown:    e.config.Confirmation.Cooldown,
		},
		RateLimitingActive: rateLimiting,
		IPThrottleActive:   rateLimiting && limits.EnableIPThrottle,
		EventsEnabled:      e.events != nil,
		Roles:              append([]string(nil), e.config.Roles.Hierarchy...),
		LintCodes:          e.config.Lint().Codes(),
	}
}
