// Command identityd serves the identity engine over HTTP.
//
// Every setting comes from IDENTITY_* environment variables. Without a
// database DSN the service keeps users in memory, and without a Redis
// address it starts an embedded miniredis, so
//
//	IDENTITY_JWT_SECRET=$(openssl rand -hex 32) go run ./cmd/identityd
//
// is enough for a local instance. Confirmation links are logged unless SMTP
// is configured.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/notify"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/MrEthical07/goIdentity/store/postgres"
	"github.com/MrEthical07/goIdentity/user"
)

type config struct {
	Addr            string        `env:"IDENTITY_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"IDENTITY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        slog.Level    `env:"IDENTITY_LOG_LEVEL" envDefault:"info"`

	DatabaseDSN string   `env:"IDENTITY_DATABASE_DSN"`
	RedisAddrs  []string `env:"IDENTITY_REDIS_ADDRS" envSeparator:","`
	RedisPass   string   `env:"IDENTITY_REDIS_PASSWORD"`

	JWTSecret   string        `env:"IDENTITY_JWT_SECRET"`
	JWTIssuer   string        `env:"IDENTITY_JWT_ISSUER" envDefault:"identityd"`
	AccessTTL   time.Duration `env:"IDENTITY_ACCESS_TTL" envDefault:"5m"`
	RefreshTTL  time.Duration `env:"IDENTITY_REFRESH_TTL" envDefault:"720h"`
	MaxSessions int           `env:"IDENTITY_MAX_SESSIONS" envDefault:"5"`

	BaseURL      string   `env:"IDENTITY_BASE_URL" envDefault:"http://localhost:8080"`
	Roles        []string `env:"IDENTITY_ROLES" envSeparator:"," envDefault:"member,moderator,admin"`
	AdminRole    string   `env:"IDENTITY_ADMIN_ROLE" envDefault:"admin"`
	EventsStdout bool     `env:"IDENTITY_EVENTS_STDOUT"`

	SMTP notify.MailConfig `envPrefix:"IDENTITY_SMTP_"`
}

func loadConfig() (config, error) {
	var cfg config
	// MailConfig is untagged; its fields read IDENTITY_SMTP_HOST and so on.
	if err := env.ParseWithOptions(&cfg, env.Options{UseFieldNameByDefault: true}); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "identityd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// -------- REDIS --------
	rdb, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	// -------- STORE --------
	users, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// -------- NOTIFIER --------
	var notifier goIdentity.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.SMTP.Host != "" {
		mailer, err := notify.NewMailer(cfg.SMTP)
		if err != nil {
			return err
		}
		notifier = mailer
	}

	engineCfg, err := engineConfig(cfg, logger)
	if err != nil {
		return err
	}

	builder := goIdentity.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithNotifier(notifier).
		WithLogger(logger)
	if cfg.EventsStdout {
		builder = builder.WithEventSink(goIdentity.NewJSONLinesSink(os.Stdout))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(engine, logger, cfg.AdminRole),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRedis(cfg config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if len(cfg.RedisAddrs) > 0 {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.RedisAddrs,
			Password: cfg.RedisPass,
		})
		logger.Info("using redis", "addrs", cfg.RedisAddrs)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Warn("IDENTITY_REDIS_ADDRS not set, using embedded miniredis", "addr", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func openStore(ctx context.Context, cfg config, logger *slog.Logger) (user.Store, func(), error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn("IDENTITY_DATABASE_DSN not set, users are kept in memory")
		return memory.New(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return postgres.New(db), func() { closeDB(db, logger) }, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("database close failed", "err", err)
	}
}

func engineConfig(cfg config, logger *slog.Logger) (goIdentity.Config, error) {
	out := goIdentity.DefaultConfig()
	out.JWT.AccessTTL = cfg.AccessTTL
	out.JWT.Issuer = cfg.JWTIssuer
	out.Session.RefreshTTL = cfg.RefreshTTL
	out.Session.MaxSessionsPerUser = cfg.MaxSessions
	out.Links.BaseURL = cfg.BaseURL
	out.Events.Enabled = cfg.EventsStdout

	if len(cfg.Roles) > 0 {
		out.Roles.Hierarchy = cfg.Roles
		out.Roles.Default = cfg.Roles[0]
	}

	if cfg.JWTSecret != "" {
		out.JWT.SigningMethod = "hs256"
		out.JWT.PrivateKey = []byte(cfg.JWTSecret)
		return out, nil
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return goIdentity.Config{}, fmt.Errorf("generate signing key: %w", err)
	}
	logger.Warn("IDENTITY_JWT_SECRET not set, signing with an ephemeral ed25519 key")
	out.JWT.SigningMethod = "ed25519"
	out.JWT.PrivateKey = priv
	out.JWT.PublicKey = pub
	return out, nil
}
