package confirmation

import (
	"testing"
	"time"
)

func TestGetNextAttemptTime(t *testing.T) {
	m, _, clock := newTestManager(t)
	now := clock.Now()

	tests := []struct {
		name     string
		attempts int
		age      time.Duration
		want     string
	}{
		{name: "inside min interval", attempts: 1, age: 5 * time.Second, want: now.Add(5 * time.Second).Format(time.RFC3339Nano)},
		{name: "past min interval", attempts: 1, age: 11 * time.Second, want: ""},
		{name: "exactly min interval", attempts: 1, age: 10 * time.Second, want: now.Format(time.RFC3339Nano)},
		{name: "at cap inside cooldown", attempts: 3, age: 15 * time.Second, want: now.Add(5 * time.Second).Format(time.RFC3339Nano)},
		{name: "at cap past cooldown", attempts: 3, age: 21 * time.Second, want: ""},
		{name: "fresh token", attempts: 0, age: 0, want: now.Add(10 * time.Second).Format(time.RFC3339Nano)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token := Token{UserID: "u1", Type: PasswordChange, AttemptCount: tc.attempts, Modified: now.Add(-tc.age)}
			if got := m.GetNextAttemptTime(token); got != tc.want {
				t.Fatalf("GetNextAttemptTime = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGetNextAttemptTimeKeepsFractionalSeconds(t *testing.T) {
	m, _, clock := newTestManager(t)

	modified := clock.Now().Add(-4*time.Second - 300*time.Millisecond)
	token := Token{UserID: "u1", Type: UsernameChange, AttemptCount: 1, Modified: modified}

	next := m.GetNextAttemptTime(token)
	if want := "2026-03-01T12:00:05.7Z"; next != want {
		t.Fatalf("GetNextAttemptTime = %q, want %q", next, want)
	}

	at, err := time.Parse(time.RFC3339Nano, next)
	if err != nil {
		t.Fatalf("parse %q: %v", next, err)
	}
	clock.Advance(at.Sub(clock.Now()) + time.Millisecond)
	if got := m.GetNextAttemptTime(token); got != "" {
		t.Fatalf("expected resend to be allowed just after the advertised time, got %q", got)
	}
}

func TestNextAttemptAtAllowed(t *testing.T) {
	m, _, clock := newTestManager(t)

	token := Token{UserID: "u1", Type: UsernameChange, AttemptCount: 2, Modified: clock.Now()}
	if _, ok := m.NextAttemptAt(token); ok {
		t.Fatal("expected resend to be refused right after a send")
	}

	clock.Advance(11 * time.Second)
	if at, ok := m.NextAttemptAt(token); !ok || !at.IsZero() {
		t.Fatalf("expected resend to be allowed, got %v %v", at, ok)
	}
}
