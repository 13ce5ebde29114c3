package goIdentity

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrInvalidToken, KindValidation},
		{ErrInvalidInput, KindValidation},
		{ErrPasswordPolicy, KindValidation},
		{ErrUserNotFound, KindNotFound},
		{ErrEmailTaken, KindConflict},
		{ErrUsernameTaken, KindConflict},
		{ErrPermissionDenied, KindConflict},
		{ErrResendThrottled, KindThrottled},
		{ErrConfirmationRateLimited, KindThrottled},
		{ErrTokenExpired, KindExpired},
		{ErrBackendUnavailable, KindBackend},
		{ErrNotification, KindBackend},
		{errors.New("something else"), KindBackend},
		{fmt.Errorf("wrapped: %w", ErrUsernameTaken), KindConflict},
	}

	for _, tc := range tests {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestErrorStringsAreStable(t *testing.T) {
	tests := map[error]string{
		ErrInvalidToken:    "invalid token",
		ErrInvalidInput:    "invalid input",
		ErrTokenExpired:    "token expired",
		ErrActivation:      "activation error",
		ErrEmailChange:     "an error occurred while changing email",
		ErrUserNotFound:    "user not found or deleted",
		ErrSessionCreation: "error creating session",
	}
	for err, want := range tests {
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	}
}
