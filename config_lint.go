package goIdentity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity uint8

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	default:
		return "HIGH"
	}
}

// LintWarning is one questionable but valid setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the output of Config.Lint.
type LintResult []LintWarning

// Codes lists the warning codes in order.
func (ws LintResult) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity keeps the warnings at or above min.
func (ws LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins every warning at or above min into one error, or returns nil.
func (ws LintResult) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range ws.BySeverity(min) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports settings that pass Validate but weaken the deployment. It
// assumes a config that already validates.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.JWT.Leeway > time.Minute {
		add("leeway_large", LintWarn, "JWT leeway above one minute widens the replay window")
	}
	if c.JWT.AccessTTL > 10*time.Minute {
		add("access_ttl_long", LintWarn, "bearer credentials live longer than 10 minutes")
	}
	if c.JWT.SigningMethod == "hs256" {
		add("signing_hs256", LintInfo, "hs256 shares the signing key with every verifier")
	}
	if c.Session.RefreshTTL > 30*24*time.Hour {
		add("refresh_ttl_long", LintWarn, "refresh sessions outlive 30 days")
	}

	if c.Password.Memory < 64*1024 {
		add("argon2_memory_low", LintWarn, "argon2 memory below 64 MB")
	}
	if c.Password.MinEntropyBits == 0 {
		add("password_policy_disabled", LintWarn, "password strength is not checked")
	}

	if c.Confirmation.MinInterval <= 0 {
		add("resend_interval_disabled", LintWarn, "confirmation resends have no minimum interval")
	}
	if c.Confirmation.MaxAttempts > 10 {
		add("resend_attempts_high", LintWarn, "more than 10 resends are allowed per cooldown")
	}
	ct := c.confirmationConfig()
	longest := ct.DefaultTTL
	for _, ttl := range ct.TTL {
		if ttl > longest {
			longest = ttl
		}
	}
	if c.Pending.TTL == longest {
		add("pending_ttl_tight", LintInfo, "staged changes expire together with the longest-lived token")
	}

	limits := c.Limits
	if limits.MaxLoginAttempts == 0 && limits.MaxRefreshAttempts == 0 &&
		limits.MaxConfirmationRequests == 0 && limits.MaxConfirmationRedemptions == 0 {
		add("rate_limits_disabled", LintHigh, "every rate limiter is disabled")
	} else if !limits.EnableIPThrottle {
		add("ip_throttle_disabled", LintInfo, "limiters count per subject only")
	}

	if base, err := url.Parse(c.Links.BaseURL); err == nil && base.Scheme == "http" && !isLoopbackHost(base.Hostname()) {
		add("links_insecure", LintHigh, "confirmation links travel over plain http")
	}

	if !c.Events.Enabled {
		add("events_disabled", LintInfo, "account changes are not published")
	}

	return ws
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
