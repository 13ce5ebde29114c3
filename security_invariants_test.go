package goIdentity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/goIdentity/confirmation"
)

func TestSecurityInvariantTokenIsSingleUse(t *testing.T) {
	h := newHarness(t)
	userID := h.registerActive(t, "ghost", "ghost@example.com")
	ctx := context.Background()

	if _, err := h.engine.RequestUserUpdate(ctx, userID, UpdateRequest{Username: "ghost2"}); err != nil {
		t.Fatalf("RequestUserUpdate failed: %v", err)
	}
	value, typ := tokenFromLink(t, h.notifier.last(t).Link)

	if err := h.engine.ConfirmToken(ctx, value, typ, false); err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if err := h.engine.ConfirmToken(ctx, value, typ, false); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on replay, got %v", err)
	}
}

func TestSecurityInvariantTokenBoundToType(t *testing.T) {
	h := newHarness(t)
	userID := h.registerActive(t, "niobe", "niobe@example.com")
	ctx := context.Background()

	if _, err := h.engine.RequestUserUpdate(ctx, userID, UpdateRequest{Username: "niobe2"}); err != nil {
		t.Fatalf("RequestUserUpdate failed: %v", err)
	}
	value, _ := tokenFromLink(t, h.notifier.last(t).Link)

	for _, other := range []confirmation.TokenType{confirmation.PasswordChange, confirmation.EmailChangeNew, confirmation.PasswordReset} {
		if err := h.engine.ConfirmToken(ctx, value, other, false); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken redeeming as %s, got %v", other, err)
		}
	}
	if err := h.engine.ConfirmToken(ctx, value, confirmation.UsernameChange, true); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected the registration entry point to refuse a username token, got %v", err)
	}

	// Failed attempts must not consume the token.
	if err := h.engine.ConfirmToken(ctx, value, confirmation.UsernameChange, false); err != nil {
		t.Fatalf("expected the original link to still work, got %v", err)
	}
}

func TestSecurityInvariantStagedPasswordNeverPlaintext(t *testing.T) {
	h := newHarness(t)
	userID := h.registerActive(t, "seraph", "seraph@example.com")

	const next = "another-Strong-passphrase-42"
	_, err := h.engine.RequestUserUpdate(context.Background(), userID, UpdateRequest{
		Password:        next,
		CurrentPassword: testPassword,
	})
	if err != nil {
		t.Fatalf("RequestUserUpdate failed: %v", err)
	}

	for _, key := range h.redis.Keys() {
		value, err := h.redis.Get(key)
		if err != nil {
			continue
		}
		if strings.Contains(value, next) {
			t.Fatalf("cache key %q holds the plaintext password", key)
		}
	}
}

func TestSecurityInvariantBearerSurvivesCacheLoss(t *testing.T) {
	h := newHarness(t)
	userID := h.registerActive(t, "link", "link@example.com")

	resp, err := h.engine.Login(context.Background(), "link", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	h.redis.FlushAll()

	id, err := h.engine.ParseBearer(resp.Bearer)
	if err != nil {
		t.Fatalf("expected bearer to verify without the cache, got %v", err)
	}
	if id.UserID != userID {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestSecurityInvariantRestartReleasesReservation(t *testing.T) {
	h := newHarness(t)
	alice := h.registerActive(t, "alice", "alice@example.com")
	bob := h.registerActive(t, "bob", "bob@example.com")
	ctx := context.Background()

	if _, err := h.engine.RequestUserUpdate(ctx, alice, UpdateRequest{Username: "first-choice"}); err != nil {
		t.Fatalf("RequestUserUpdate failed: %v", err)
	}
	if _, err := h.engine.RequestUserUpdate(ctx, bob, UpdateRequest{Username: "First-Choice"}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected the staged name to be reserved, got %v", err)
	}

	h.clock.Advance(h.engine.Confirmations().Config().MinInterval * 2)
	if _, err := h.engine.RequestUserUpdate(ctx, alice, UpdateRequest{Username: "second-choice"}); err != nil {
		t.Fatalf("restart failed: %v", err)
	}

	if _, err := h.engine.RequestUserUpdate(ctx, bob, UpdateRequest{Username: "first-choice"}); err != nil {
		t.Fatalf("expected the abandoned name to be released, got %v", err)
	}
}
