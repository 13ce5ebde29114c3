package goIdentity

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-Horse-battery-9-staple"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMessage struct {
	Destination string
	Type        confirmation.TokenType
	Link        string
	Data        map[string]string
}

// captureNotifier records every delivery. fail, when set, is returned
// instead.
type captureNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail error
}

func (n *captureNotifier) SendConfirmationMessage(_ context.Context, destination string, t confirmation.TokenType, link string, data map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentMessage{Destination: destination, Type: t, Link: link, Data: data})
	return nil
}

func (n *captureNotifier) last(t testing.TB) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		t.Fatal("expected a delivered message")
	}
	return n.sent[len(n.sent)-1]
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type harness struct {
	engine   *Engine
	store    *memory.Store
	redis    *miniredis.Miniredis
	notifier *captureNotifier
	clock    *testClock
	sink     *ChannelSink
}

func testEngineConfig(clock *testClock) Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Confirmation.MinInterval = 10 * time.Second
	cfg.Confirmation.MaxAttempts = 3
	cfg.Confirmation.Cooldown = time.Minute
	cfg.Events.Enabled = true
	cfg.Events.BufferSize = 64
	cfg.Events.DropIfFull = true
	cfg.Now = clock.Now
	return cfg
}

func newHarness(t testing.TB, mutate ...func(*Config)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := testEngineConfig(clock)
	for _, fn := range mutate {
		fn(&cfg)
	}

	store := memory.New()
	notifier := &captureNotifier{}
	sink := NewChannelSink(256)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(notifier).
		WithEventSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return &harness{
		engine:   engine,
		store:    store,
		redis:    mr,
		notifier: notifier,
		clock:    clock,
		sink:     sink,
	}
}

// tokenFromLink extracts the token value and type from a delivered link.
func tokenFromLink(t testing.TB, link string) (string, confirmation.TokenType) {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("invalid link %q: %v", link, err)
	}
	q := u.Query()
	return q.Get("token"), confirmation.ParseTokenType(q.Get("type"))
}

// registerActive registers and confirms an account and returns its id.
func (h *harness) registerActive(t testing.TB, username, email string) string {
	t.Helper()
	ctx := context.Background()

	id, err := h.engine.Register(ctx, RegistrationRequest{Username: username, Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	value, typ := tokenFromLink(t, h.notifier.last(t).Link)
	if typ != confirmation.RegistrationConfirmation {
		t.Fatalf("expected registration link, got %v", typ)
	}
	if err := h.engine.ConfirmToken(ctx, value, typ, true); err != nil {
		t.Fatalf("ConfirmToken failed: %v", err)
	}
	return id
}

// seedUser writes an active account straight to the store.
func (h *harness) seedUser(t testing.TB, u User) User {
	t.Helper()
	hash, salt, err := h.engine.passwordHash.Hash(testPassword)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	u.PasswordHash = hash
	u.Salt = salt
	u.IsActive = true
	if u.Provider == "" {
		u.Provider = "local"
	}
	if u.Role == "" {
		u.Role = "member"
	}
	u.Created = h.clock.Now()
	u.Modified = u.Created
	if err := h.store.Create(context.Background(), u); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return u
}
