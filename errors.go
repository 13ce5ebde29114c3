package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
)

// The Error() strings below are stable; callers map them to transport
// statuses through Classify.
var (
	// ErrInvalidToken covers malformed, unknown, mismatched, expired and
	// superseded confirmation tokens alike.
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidInputData   = errors.New("invalid input data")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrInvalidInput       = refresh.ErrInvalidInput
	ErrRefreshInvalid     = errors.New("invalid refresh token")
	ErrTokenExpired       = refresh.ErrTokenExpired
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUserNotFound = user.ErrNotFound

	ErrEmailTaken       = user.ErrEmailTaken
	ErrUsernameTaken    = user.ErrUsernameTaken
	ErrPermissionDenied = errors.New("you do not have permission to perform this action")
	ErrAccountInactive  = errors.New("account not activated")
	ErrFederatedAccount = errors.New("operation not available for federated accounts")
	ErrPasswordPolicy   = password.ErrPolicy
	ErrPasswordTooShort = password.ErrPasswordTooShort

	ErrSessionCreation = errors.New("error creating session")
	ErrDeletion        = errors.New("error during deletion")
	ErrActivation      = errors.New("activation error")
	ErrPasswordChange  = errors.New("an error occurred while changing password")
	ErrEmailChange     = errors.New("an error occurred while changing email")
	ErrUsernameChange  = errors.New("an error occurred while changing username")
	ErrRoleChange      = errors.New("an error occurred while changing role")
	// ErrNotification is returned when the change was staged but the link
	// could not be handed to the notifier. A resend delivers a fresh link.
	ErrNotification = errors.New("notification failed")
	// ErrBackendUnavailable is returned when the cache or the durable store
	// failed before any state was changed.
	ErrBackendUnavailable = errors.New("identity backend unavailable")

	ErrResendThrottled         = errors.New("resend throttled")
	ErrLoginRateLimited        = errors.New("login rate limited")
	ErrRefreshRateLimited      = errors.New("refresh rate limited")
	ErrConfirmationRateLimited = errors.New("confirmation rate limited")

	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind is the coarse class of an engine error.
type ErrorKind uint8

const (
	KindNone ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindThrottled
	KindExpired
	KindBackend
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindThrottled:
		return "throttled"
	case KindExpired:
		return "expired"
	default:
		return "backend"
	}
}

// Classify maps err to its ErrorKind. Errors the engine does not know are
// KindBackend.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidInputData),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrRefreshInvalid),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrPasswordPolicy),
		errors.Is(err, ErrPasswordTooShort):
		return KindValidation
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrAccountInactive),
		errors.Is(err, ErrFederatedAccount):
		return KindConflict
	case errors.Is(err, ErrResendThrottled),
		errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrConfirmationRateLimited):
		return KindThrottled
	case errors.Is(err, ErrTokenExpired):
		return KindExpired
	default:
		return KindBackend
	}
}
