package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrConfirmationRateLimited        = errors.New("confirmation rate limited")
	ErrConfirmationLimiterUnavailable = errors.New("confirmation limiter unavailable")
)

// ConfirmationConfig bounds how often a subject or client IP may request
// and redeem confirmation tokens within one Window.
type ConfirmationConfig struct {
	EnableSubjectThrottle bool
	EnableIPThrottle      bool
	Window                time.Duration
	MaxRequests           int
	MaxRedemptions        int
}

// ConfirmationLimiter guards registration, change requests, password reset
// requests and token redemption. It sits in front of the per-token resend
// throttle and catches enumeration across many tokens.
type ConfirmationLimiter struct {
	redis  redis.UniversalClient
	config ConfirmationConfig
}

func NewConfirmationLimiter(redisClient redis.UniversalClient, cfg ConfirmationConfig) *ConfirmationLimiter {
	return &ConfirmationLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest counts one token request for subject (a user id or address)
// and ip.
func (l *ConfirmationLimiter) CheckRequest(ctx context.Context, subject, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableSubjectThrottle && subject != "" {
		if err := l.enforceFixedWindow(ctx, requestSubjectKey(subject), l.config.MaxRequests); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := l.enforceFixedWindow(ctx, requestIPKey(ip), l.config.MaxRequests); err != nil {
			return err
		}
	}
	return nil
}

// CheckRedeem counts one redemption attempt from ip.
func (l *ConfirmationLimiter) CheckRedeem(ctx context.Context, ip string) error {
	if l == nil || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return l.enforceFixedWindow(ctx, redeemIPKey(ip), l.config.MaxRedemptions)
}

func (l *ConfirmationLimiter) enforceFixedWindow(ctx context.Context, key string, limit int) error {
	if limit <= 0 {
		return nil
	}

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfirmationLimiterUnavailable, err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfirmationLimiterUnavailable, err)
		}
	}

	if count > int64(limit) {
		return ErrConfirmationRateLimited
	}
	return nil
}

func requestSubjectKey(subject string) string {
	return "icr:" + strings.ToLower(subject)
}

func requestIPKey(ip string) string {
	return "icrip:" + ip
}

func redeemIPKey(ip string) string {
	return "icc:" + ip
}
