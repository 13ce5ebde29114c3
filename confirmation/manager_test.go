package confirmation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/cache"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func testConfig(clock *testClock) Config {
	cfg := DefaultConfig()
	cfg.MinInterval = 10 * time.Second
	cfg.MaxAttempts = 3
	cfg.Cooldown = 20 * time.Second
	cfg.Now = clock.Now
	return cfg
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis, *testClock) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	clock := newTestClock()
	m, err := NewManager(cache.NewRedis(rdb), testConfig(clock))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, mr, clock
}

func assertSameToken(t *testing.T, got, want Token) {
	t.Helper()
	if got.UserID != want.UserID || got.Value != want.Value || got.Type != want.Type || got.AttemptCount != want.AttemptCount {
		t.Fatalf("token mismatch: got %+v, want %+v", got, want)
	}
	if !got.Modified.Equal(want.Modified) {
		t.Fatalf("modified mismatch: got %v, want %v", got.Modified, want.Modified)
	}
}

func TestCreateTokenRoundTrip(t *testing.T) {
	m, mr, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", PasswordChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if !mr.Exists("ct:PasswordChange:" + token.Value) {
		t.Fatal("expected value index entry")
	}
	userIndex, err := mr.Get("ct:PasswordChange:u1")
	if err != nil || userIndex != token.Value {
		t.Fatalf("expected user index to hold token value, got %q %v", userIndex, err)
	}
	if ttl := mr.TTL("ct:PasswordChange:u1"); ttl != 30*time.Minute {
		t.Fatalf("expected type ttl on user index, got %v", ttl)
	}

	byValue, err := m.GetToken(ctx, token.Value, PasswordChange)
	if err != nil {
		t.Fatalf("GetToken failed: %v", err)
	}
	assertSameToken(t, byValue, token)

	byUser, err := m.GetTokenByUserID(ctx, "u1", PasswordChange)
	if err != nil {
		t.Fatalf("GetTokenByUserID failed: %v", err)
	}
	assertSameToken(t, byUser, token)
}

func TestGetTokenTypeMismatch(t *testing.T) {
	m, mr, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", UsernameChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	// Plant the same record under another type's value key.
	record, _ := mr.Get("ct:UsernameChange:" + token.Value)
	if err := mr.Set("ct:PasswordChange:"+token.Value, record); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := mr.Set("ct:PasswordChange:u1", token.Value); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	if _, err := m.GetToken(ctx, token.Value, PasswordChange); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound on type mismatch, got %v", err)
	}
	if _, err := m.GetToken(ctx, token.Value, UsernameChange); err != nil {
		t.Fatalf("expected matching type to resolve, got %v", err)
	}
}

func TestGetTokenRejectsMalformedAndUnknown(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", PasswordReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if _, err := m.GetToken(ctx, "short-token", PasswordReset); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected malformed token rejection, got %v", err)
	}
	if _, err := m.GetToken(ctx, token.Value, Unknown); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected Unknown type rejection, got %v", err)
	}
	if _, err := m.CreateToken(ctx, "u1", Unknown); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestGetTokenMissingCounterpart(t *testing.T) {
	m, mr, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", EmailChangeNew)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	mr.Del("ct:EmailChangeNew:u1")

	if _, err := m.GetToken(ctx, token.Value, EmailChangeNew); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected half-deleted pair to resolve as absent, got %v", err)
	}
	if _, err := m.GetTokenByUserID(ctx, "u1", EmailChangeNew); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected missing user index to resolve as absent, got %v", err)
	}
}

func TestCreateTokenSupersedesPrevious(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.CreateToken(ctx, "u1", UsernameChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	second, err := m.CreateToken(ctx, "u1", UsernameChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}

	if _, err := m.GetToken(ctx, first.Value, UsernameChange); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected superseded token to be absent, got %v", err)
	}
	if _, err := m.GetToken(ctx, second.Value, UsernameChange); err != nil {
		t.Fatalf("expected latest token to resolve, got %v", err)
	}
}

func TestUpdateTokenIncrementsWithinCooldown(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", PasswordChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	clock.Advance(11 * time.Second)

	updated, err := m.UpdateToken(ctx, token)
	if err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	if updated.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", updated.AttemptCount)
	}
	if updated.Value == token.Value {
		t.Fatal("expected a new token value")
	}
	if !updated.Modified.Equal(clock.Now()) {
		t.Fatalf("expected modified=now, got %v", updated.Modified)
	}

	if _, err := m.GetToken(ctx, token.Value, PasswordChange); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected old value to be gone, got %v", err)
	}
	got, err := m.GetTokenByUserID(ctx, "u1", PasswordChange)
	if err != nil {
		t.Fatalf("GetTokenByUserID failed: %v", err)
	}
	assertSameToken(t, got, updated)
}

func TestUpdateTokenResetsAfterCooldown(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", PasswordChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		clock.Advance(11 * time.Second)
		token, err = m.UpdateToken(ctx, token)
		if err != nil {
			t.Fatalf("UpdateToken %d failed: %v", i, err)
		}
	}
	if token.AttemptCount != 3 {
		t.Fatalf("expected attempt count at max, got %d", token.AttemptCount)
	}

	clock.Advance(20*time.Second + time.Second)
	previous := token.Value
	token, err = m.UpdateToken(ctx, token)
	if err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	if token.AttemptCount != 1 {
		t.Fatalf("expected reset-then-increment to 1, got %d", token.AttemptCount)
	}
	if token.Value == previous {
		t.Fatal("expected new value after reset")
	}
}

func TestUpdateTokenFailsWhenPairIncomplete(t *testing.T) {
	m, mr, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", UsernameChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	mr.Del("ct:UsernameChange:" + token.Value)

	if _, err := m.UpdateToken(ctx, token); !errors.Is(err, ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
	if mr.Exists("ct:UsernameChange:u1") {
		t.Fatal("expected user index to be deleted without restore")
	}
}

func TestConcurrentResendAtMostOneWinner(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", PasswordChange)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	clock.Advance(11 * time.Second)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := m.UpdateToken(ctx, token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrIndexInconsistent) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success > 1 {
		t.Fatalf("expected at most one resend to win, got %d", success)
	}
}

func TestDeleteToken(t *testing.T) {
	m, mr, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", RegistrationConfirmation)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if err := m.DeleteToken(ctx, token); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if mr.Exists("ct:RegistrationConfirmation:"+token.Value) || mr.Exists("ct:RegistrationConfirmation:u1") {
		t.Fatal("expected both index entries removed")
	}
	if _, err := m.GetToken(ctx, token.Value, RegistrationConfirmation); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected deleted token to be absent, got %v", err)
	}
	if err := m.DeleteToken(ctx, token); !errors.Is(err, ErrIndexInconsistent) {
		t.Fatalf("expected second delete to report failure, got %v", err)
	}
}

func TestCreateLinkedTokenKeepsLineage(t *testing.T) {
	m, _, clock := newTestManager(t)
	ctx := context.Background()

	old, err := m.CreateToken(ctx, "u1", EmailChangeOld)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	clock.Advance(11 * time.Second)
	old, err = m.UpdateToken(ctx, old)
	if err != nil {
		t.Fatalf("UpdateToken failed: %v", err)
	}
	clock.Advance(5 * time.Second)

	next, err := m.CreateLinkedToken(ctx, old, EmailChangeNew)
	if err != nil {
		t.Fatalf("CreateLinkedToken failed: %v", err)
	}
	if next.Type != EmailChangeNew || next.UserID != "u1" {
		t.Fatalf("unexpected linked token %+v", next)
	}
	if next.AttemptCount != old.AttemptCount || !next.Modified.Equal(old.Modified) {
		t.Fatalf("expected lineage to carry over, got %+v from %+v", next, old)
	}
	if next.Value == old.Value {
		t.Fatal("expected a fresh value")
	}
}

type failingCache struct {
	cache.Cache
	failPutKey    string
	failDeleteKey string
}

func (f *failingCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == f.failPutKey {
		return cache.ErrUnavailable
	}
	return f.Cache.Put(ctx, key, value, ttl)
}

func (f *failingCache) Delete(ctx context.Context, key string) (bool, error) {
	if key == f.failDeleteKey {
		return false, cache.ErrUnavailable
	}
	return f.Cache.Delete(ctx, key)
}

func TestCreateTokenUserIndexWriteFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fc := &failingCache{Cache: cache.NewRedis(rdb), failPutKey: "ct:UsernameChange:u1"}
	m, err := NewManager(fc, testConfig(newTestClock()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	_, err = m.CreateToken(context.Background(), "u1", UsernameChange)
	if !errors.Is(err, ErrIndexInconsistent) || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected inconsistent+unavailable, got %v", err)
	}
	// The value index is left behind but cannot resolve without its counterpart.
	if len(mr.Keys()) != 1 {
		t.Fatalf("expected orphaned value index only, got %v", mr.Keys())
	}
}

func TestDeleteTokenPartialFailure(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fc := &failingCache{Cache: cache.NewRedis(rdb), failDeleteKey: "ct:PasswordReset:u1"}
	m, err := NewManager(fc, testConfig(newTestClock()))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.CreateToken(context.Background(), "u1", PasswordReset)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if err := m.DeleteToken(context.Background(), token); !errors.Is(err, ErrIndexInconsistent) {
		t.Fatalf("expected ErrIndexInconsistent, got %v", err)
	}
	if mr.Exists("ct:PasswordReset:" + token.Value) {
		t.Fatal("expected value index deleted")
	}
	if !mr.Exists("ct:PasswordReset:u1") {
		t.Fatal("expected user index to remain")
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	if _, err := NewManager(cache.NewRedis(rdb), cfg); err == nil {
		t.Fatal("expected MaxAttempts validation error")
	}

	cfg = DefaultConfig()
	cfg.TTL[Unknown] = time.Minute
	if _, err := NewManager(cache.NewRedis(rdb), cfg); err == nil {
		t.Fatal("expected Unknown TTL validation error")
	}

	if _, err := NewManager(nil, DefaultConfig()); err == nil {
		t.Fatal("expected nil cache error")
	}
}

func TestClaimTokenSucceedsOnce(t *testing.T) {
	m, mr, _ := newTestManager(t)
	ctx := context.Background()

	token, err := m.CreateToken(ctx, "u1", EmailChangeOld)
	if err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	if err := m.ClaimToken(ctx, token); err != nil {
		t.Fatalf("ClaimToken failed: %v", err)
	}
	if err := m.ClaimToken(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected second claim rejected, got %v", err)
	}
	if mr.Exists("ct:EmailChangeOld:"+token.Value) || mr.Exists("ct:EmailChangeOld:u1") {
		t.Fatal("expected both index entries removed by the claim")
	}
	if _, err := m.GetToken(ctx, token.Value, EmailChangeOld); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected claimed token unresolvable, got %v", err)
	}

	if err := m.RestoreToken(ctx, token); err != nil {
		t.Fatalf("RestoreToken failed: %v", err)
	}
	restored, err := m.GetTokenByUserID(ctx, "u1", EmailChangeOld)
	if err != nil {
		t.Fatalf("expected restored token to resolve, got %v", err)
	}
	if restored.Value != token.Value || restored.AttemptCount != token.AttemptCount {
		t.Fatalf("unexpected restored token %+v", restored)
	}
}
