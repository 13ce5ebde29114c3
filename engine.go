package goIdentity

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goIdentity/cache"
	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/internal/events"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
)

// Engine is the identity backend. It is built once by Builder and is safe
// for concurrent use; it holds no locks of its own and relies on the cache
// and the durable store for coordination.
type Engine struct {
	config Config

	users         user.Store
	cache         cache.Cache
	sessions      *refresh.Manager
	confirmations *confirmation.Manager

	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	notifier     notify.Notifier

	rateLimiter    *rate.Limiter
	confirmLimiter *limiters.ConfirmationLimiter

	events   *events.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	roleRank map[string]int
}

// Close drains queued account events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.events.Close()
}

// EventsDropped returns the number of account events lost to backpressure.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

// Confirmations exposes the confirmation-token manager.
func (e *Engine) Confirmations() *confirmation.Manager {
	return e.confirmations
}

// Sessions exposes the refresh-token manager.
func (e *Engine) Sessions() *refresh.Manager {
	return e.sessions
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e.config.Now != nil {
		return e.config.Now()
	}
	return time.Now()
}

// backendFailure logs err and counts it. Token values, hashes and salts are
// never passed here.
func (e *Engine) backendFailure(ctx context.Context, msg string, err error, attrs ...any) {
	e.metricInc(MetricBackendFailure)
	e.logger.WarnContext(ctx, msg, append(attrs, "err", err)...)
}

// ParseBearer verifies a bearer credential issued by this engine.
func (e *Engine) ParseBearer(tokenStr string) (Identity, error) {
	if e == nil || e.jwtManager == nil {
		return Identity{}, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricBearerLatency, time.Since(start))
		}
	}()

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	id := Identity{UserID: claims.UID, Role: claims.Role}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
