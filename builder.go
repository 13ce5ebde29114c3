package goIdentity

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

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

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	cache  cache.Cache

	users    user.Store
	sessions refresh.Store
	notifier notify.Notifier
	sink     events.Sink
	logger   *slog.Logger

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the ephemeral cache and the request limiters with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCache overrides the ephemeral cache. Without WithRedis the limiters
// stay disabled.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

func (b *Builder) WithUserStore(s user.Store) *Builder {
	b.users = s
	return b
}

// WithSessionStore sets the refresh-token store. When unset, the user store
// is used if it also implements refresh.Store.
func (b *Builder) WithSessionStore(s refresh.Store) *Builder {
	b.sessions = s
	return b
}

func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires every manager.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- STORES --------
	if b.users == nil {
		return nil, errors.New("user store required")
	}
	sessionStore := b.sessions
	if sessionStore == nil {
		s, ok := b.users.(refresh.Store)
		if !ok {
			return nil, errors.New("session store required")
		}
		sessionStore = s
	}

	c := b.cache
	if c == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or cache required")
		}
		c = cache.NewRedis(b.redis)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: logger}
	}

	// -------- MANAGERS --------
	sessions, err := refresh.NewManager(sessionStore, refresh.Config{
		MaxSessions: cfg.Session.MaxSessionsPerUser,
		TTL:         cfg.Session.RefreshTTL,
		Now:         cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	confirmations, err := confirmation.NewManager(c, cfg.confirmationConfig())
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:        cfg,
		users:         b.users,
		cache:         c,
		sessions:      sessions,
		confirmations: confirmations,
		passwordHash:  ph,
		jwtManager:    jm,
		notifier:      notifier,
		metrics:       NewMetrics(cfg.Metrics),
		logger:        logger,
		roleRank:      make(map[string]int, len(cfg.Roles.Hierarchy)),
	}
	for i, role := range cfg.Roles.Hierarchy {
		engine.roleRank[role] = i
	}

	// -------- LIMITERS --------
	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:   cfg.Limits.EnableIPThrottle,
			MaxLoginAttempts:   cfg.Limits.MaxLoginAttempts,
			LoginWindow:        cfg.Limits.LoginWindow,
			MaxRefreshAttempts: cfg.Limits.MaxRefreshAttempts,
			RefreshWindow:      cfg.Limits.RefreshWindow,
		})
		engine.confirmLimiter = limiters.NewConfirmationLimiter(b.redis, limiters.ConfirmationConfig{
			EnableSubjectThrottle: cfg.Limits.MaxConfirmationRequests > 0,
			EnableIPThrottle:      cfg.Limits.EnableIPThrottle,
			Window:                cfg.Limits.ConfirmationWindow,
			MaxRequests:           cfg.Limits.MaxConfirmationRequests,
			MaxRedemptions:        cfg.Limits.MaxConfirmationRedemptions,
		})
	}

	engine.events = events.NewDispatcher(events.Config{
		Enabled:    cfg.Events.Enabled,
		BufferSize: cfg.Events.BufferSize,
		DropIfFull: cfg.Events.DropIfFull,
	}, b.sink)

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("configuration warning", "code", w.Code, "severity", w.Severity.String(), "detail", w.Message)
	}

	b.built = true

	return engine, nil
}
