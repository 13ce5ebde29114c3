package goIdentity

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/user"
	"github.com/google/uuid"
)

// Register stages an inactive account and sends its registration link. The
// account reaches the user store only when the link is confirmed.
func (e *Engine) Register(ctx context.Context, req RegistrationRequest) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if username == "" || strings.Contains(username, "@") || !strings.Contains(email, "@") {
		return "", ErrInvalidInputData
	}

	if err := e.checkConfirmationRequest(ctx, strings.ToLower(email)); err != nil {
		return "", err
	}

	hash, salt, err := e.hashNewPassword(req.Password)
	if err != nil {
		return "", err
	}

	if err := e.ensureAvailable(ctx, reserveUsername, username, ""); err != nil {
		return "", err
	}
	if err := e.ensureAvailable(ctx, reserveEmail, email, ""); err != nil {
		return "", err
	}

	now := e.now()
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		Role:         e.config.Roles.Default,
		Provider:     user.ProviderLocal,
		IsActive:     false,
		Created:      now,
		Modified:     now,
	}

	if err := e.stageRegistration(ctx, u); err != nil {
		e.backendFailure(ctx, "registration staging failed", err, "user_id", u.ID)
		return "", ErrBackendUnavailable
	}
	if err := e.reserve(ctx, reserveUsername, username, u.ID); err != nil {
		e.backendFailure(ctx, "username reservation failed", err, "user_id", u.ID)
		return "", ErrBackendUnavailable
	}
	if err := e.reserve(ctx, reserveEmail, email, u.ID); err != nil {
		e.backendFailure(ctx, "email reservation failed", err, "user_id", u.ID)
		return "", ErrBackendUnavailable
	}

	token, err := e.confirmations.CreateToken(ctx, u.ID, confirmation.RegistrationConfirmation)
	if err != nil {
		e.backendFailure(ctx, "registration token failed", err, "user_id", u.ID)
		return "", ErrBackendUnavailable
	}

	e.metricInc(MetricRegistrationRequested)
	e.emitEvent(ctx, EventUserRegistered, u.ID, u.ID, nil)
	// The staged account survives a failed delivery; the returned id lets the
	// caller resend.
	if err := e.deliver(ctx, email, token, map[string]string{"Username": username}); err != nil {
		return u.ID, err
	}
	return u.ID, nil
}

// RequestUserUpdate stages one identity change for userID and sends its
// confirmation link. When a token of the same type is outstanding the call
// is a resend and obeys the resend throttle; a throttled call changes
// nothing and returns the next permitted attempt time with
// ErrResendThrottled.
func (e *Engine) RequestUserUpdate(ctx context.Context, userID string, req UpdateRequest) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}

	t := confirmation.DetermineTokenType(req)
	if t == confirmation.Unknown || userID == "" {
		return "", ErrInvalidInputData
	}

	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return "", e.lookupError(ctx, err, userID)
	}
	if !u.IsActive {
		return "", ErrAccountInactive
	}

	if err := e.checkConfirmationRequest(ctx, userID); err != nil {
		return "", err
	}

	existing, found, err := e.outstandingToken(ctx, userID, t)
	if err != nil {
		return "", err
	}
	if found {
		if next := e.confirmations.GetNextAttemptTime(existing); next != "" {
			e.metricInc(MetricConfirmationThrottled)
			return next, ErrResendThrottled
		}
	}

	pending, reservation, err := e.preparePending(ctx, u, t, req)
	if err != nil {
		return "", err
	}

	if t == confirmation.EmailChangeOld {
		// A follow-up token from an earlier email change would confirm the
		// newly staged address without its owner seeing it.
		if err := e.dropOutstanding(ctx, userID, confirmation.EmailChangeNew); err != nil {
			return "", err
		}
	}

	if previous, err := e.loadPending(ctx, userID, t); err == nil && reservation != "" && !strings.EqualFold(previous.NewValue, pending.NewValue) {
		e.releaseReservation(ctx, reservation, previous.NewValue, userID)
	}
	if err := e.stagePending(ctx, pending); err != nil {
		e.backendFailure(ctx, "pending update staging failed", err, "user_id", userID, "token_type", t.String())
		return "", ErrBackendUnavailable
	}
	if reservation != "" {
		if err := e.reserve(ctx, reservation, pending.NewValue, userID); err != nil {
			e.backendFailure(ctx, "reservation failed", err, "user_id", userID)
			return "", ErrBackendUnavailable
		}
	}

	var token ConfirmationToken
	if found {
		token, err = e.confirmations.UpdateToken(ctx, existing)
	} else {
		token, err = e.confirmations.CreateToken(ctx, userID, t)
	}
	if err != nil {
		e.backendFailure(ctx, "confirmation token write failed", err, "user_id", userID, "token_type", t.String())
		return "", ErrBackendUnavailable
	}

	if found {
		e.metricInc(MetricConfirmationResent)
	}
	if err := e.deliver(ctx, u.Email, token, map[string]string{"Username": u.Username}); err != nil {
		return "", err
	}
	return "", nil
}

// preparePending validates req against u and builds the staged change. The
// returned reservation kind is empty when the change claims no identifier.
func (e *Engine) preparePending(ctx context.Context, u User, t confirmation.TokenType, req UpdateRequest) (PendingUserUpdate, string, error) {
	pending := PendingUserUpdate{ID: u.ID, ChangeType: t}

	switch t {
	case confirmation.UsernameChange:
		username := strings.TrimSpace(req.Username)
		if username == "" || strings.Contains(username, "@") || username == u.Username {
			return pending, "", ErrInvalidInputData
		}
		if err := e.ensureAvailable(ctx, reserveUsername, username, u.ID); err != nil {
			return pending, "", err
		}
		pending.NewValue = username
		return pending, reserveUsername, nil

	case confirmation.EmailChangeOld:
		if !u.IsLocal() {
			return pending, "", ErrFederatedAccount
		}
		email := strings.TrimSpace(req.Email)
		if !strings.Contains(email, "@") || strings.EqualFold(email, u.Email) {
			return pending, "", ErrInvalidInputData
		}
		if err := e.ensureAvailable(ctx, reserveEmail, email, u.ID); err != nil {
			return pending, "", err
		}
		pending.NewValue = email
		return pending, reserveEmail, nil

	case confirmation.PasswordChange:
		if !u.IsLocal() {
			return pending, "", ErrFederatedAccount
		}
		ok, err := e.passwordHash.Verify(req.CurrentPassword, u.PasswordHash, u.Salt)
		if err != nil || !ok {
			return pending, "", ErrInvalidCredentials
		}
		hash, salt, err := e.hashNewPassword(req.Password)
		if err != nil {
			return pending, "", err
		}
		pending.NewValue = hash
		pending.Salt = salt
		return pending, "", nil

	default:
		return pending, "", ErrInvalidInputData
	}
}

// ResendConfirmation reissues the outstanding token of type t for userID
// with a new value. It returns the next permitted attempt time with
// ErrResendThrottled when the resend rule refuses.
func (e *Engine) ResendConfirmation(ctx context.Context, userID string, t confirmation.TokenType) (string, error) {
	if !t.Issuable() || t == confirmation.RoleChange || userID == "" {
		return "", ErrInvalidInputData
	}

	if err := e.checkConfirmationRequest(ctx, userID); err != nil {
		return "", err
	}

	existing, found, err := e.outstandingToken(ctx, userID, t)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrInvalidToken
	}
	if next := e.confirmations.GetNextAttemptTime(existing); next != "" {
		e.metricInc(MetricConfirmationThrottled)
		return next, ErrResendThrottled
	}

	destination, data, err := e.resendDestination(ctx, userID, t)
	if err != nil {
		return "", err
	}

	token, err := e.confirmations.UpdateToken(ctx, existing)
	if err != nil {
		e.backendFailure(ctx, "confirmation resend failed", err, "user_id", userID, "token_type", t.String())
		return "", ErrBackendUnavailable
	}
	e.extendPending(ctx, userID, t, e.confirmations.Config().TTLFor(t))

	e.metricInc(MetricConfirmationResent)
	if err := e.deliver(ctx, destination, token, data); err != nil {
		return "", err
	}
	return "", nil
}

// resendDestination picks the address a resent link goes to. Registration
// reads the staged record since the account is not stored yet, and
// EmailChangeNew goes to the staged new address.
func (e *Engine) resendDestination(ctx context.Context, userID string, t confirmation.TokenType) (string, map[string]string, error) {
	if t == confirmation.RegistrationConfirmation {
		staged, err := e.loadRegistration(ctx, userID)
		if err != nil {
			if errors.Is(err, errPendingMissing) {
				return "", nil, ErrInvalidToken
			}
			e.backendFailure(ctx, "staged registration lookup failed", err, "user_id", userID)
			return "", nil, ErrBackendUnavailable
		}
		return staged.Email, map[string]string{"Username": staged.Username}, nil
	}

	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		return "", nil, e.lookupError(ctx, err, userID)
	}
	data := map[string]string{"Username": u.Username}
	if t != confirmation.EmailChangeNew {
		return u.Email, data, nil
	}

	pending, err := e.loadPending(ctx, userID, t)
	if err != nil {
		if errors.Is(err, errPendingMissing) {
			return "", nil, ErrInvalidToken
		}
		e.backendFailure(ctx, "pending update lookup failed", err, "user_id", userID)
		return "", nil, ErrBackendUnavailable
	}
	return pending.NewValue, data, nil
}

// extendPending keeps the staged change and its reservations alive for at
// least ttl after a resend.
func (e *Engine) extendPending(ctx context.Context, userID string, t confirmation.TokenType, ttl time.Duration) {
	if ttl < e.config.Pending.TTL {
		ttl = e.config.Pending.TTL
	}

	keys := []string{e.pendingKey(t, userID)}
	if t == confirmation.RegistrationConfirmation {
		if staged, err := e.loadRegistration(ctx, userID); err == nil {
			keys = append(keys, e.reservationKey(reserveUsername, staged.Username), e.reservationKey(reserveEmail, staged.Email))
		}
	} else if pending, err := e.loadPending(ctx, userID, t); err == nil {
		switch t {
		case confirmation.UsernameChange:
			keys = append(keys, e.reservationKey(reserveUsername, pending.NewValue))
		case confirmation.EmailChangeOld, confirmation.EmailChangeNew:
			keys = append(keys, e.reservationKey(reserveEmail, pending.NewValue))
		}
	}

	for _, key := range keys {
		if _, err := e.cache.UpdateTTL(ctx, key, ttl); err != nil {
			e.logger.WarnContext(ctx, "pending ttl extension failed", "user_id", userID, "err", err)
		}
	}
}

// ConfirmToken redeems a token value delivered by link. isRegistration tells
// which entry point received it; registration links redeem only
// RegistrationConfirmation and every other entry point redeems everything
// else.
func (e *Engine) ConfirmToken(ctx context.Context, value string, t confirmation.TokenType, isRegistration bool) error {
	if e == nil || e.confirmations == nil {
		return ErrEngineNotReady
	}
	if !confirmation.ValidateTokenTypeForRequest(t, isRegistration) {
		e.metricInc(MetricConfirmationInvalid)
		return ErrInvalidToken
	}

	if err := e.confirmLimiter.CheckRedeem(ctx, ClientIPFromContext(ctx)); err != nil {
		return e.confirmationLimitError(ctx, err)
	}

	token, err := e.resolveToken(ctx, value, t)
	if err != nil {
		return err
	}
	_, err = e.redeem(ctx, token)
	return err
}

func (e *Engine) resolveToken(ctx context.Context, value string, t confirmation.TokenType) (ConfirmationToken, error) {
	token, err := e.confirmations.GetToken(ctx, value, t)
	if err != nil {
		if errors.Is(err, confirmation.ErrTokenNotFound) {
			e.metricInc(MetricConfirmationInvalid)
			return ConfirmationToken{}, ErrInvalidToken
		}
		e.backendFailure(ctx, "confirmation lookup failed", err, "token_type", t.String())
		return ConfirmationToken{}, ErrBackendUnavailable
	}
	return token, nil
}

// redeem applies token, then removes it and its staged change. A failure
// before the token is deleted leaves everything in place for a retry.
//
// An EmailChangeOld token is claimed before its follow-up is minted, so only
// one of two concurrent redemptions issues an EmailChangeNew token. A failed
// follow-up puts the claimed token back.
func (e *Engine) redeem(ctx context.Context, token ConfirmationToken) (UpdateOutcome, error) {
	claimed := token.Type == confirmation.EmailChangeOld
	if claimed {
		if err := e.confirmations.ClaimToken(ctx, token); err != nil {
			if errors.Is(err, confirmation.ErrTokenNotFound) {
				e.metricInc(MetricConfirmationInvalid)
				return UpdateOutcome{}, ErrInvalidToken
			}
			e.backendFailure(ctx, "confirmation token claim failed", err, "user_id", token.UserID, "token_type", token.Type.String())
			return UpdateOutcome{}, ErrBackendUnavailable
		}
	}

	outcome, err := e.ExecuteUserUpdateFromToken(ctx, token)
	if err != nil {
		if claimed {
			if rerr := e.confirmations.RestoreToken(ctx, token); rerr != nil {
				e.logger.WarnContext(ctx, "confirmation token restore failed", "user_id", token.UserID, "err", rerr)
			}
		}
		if errors.Is(err, ErrInvalidToken) {
			e.metricInc(MetricConfirmationInvalid)
		}
		return UpdateOutcome{}, err
	}

	if !claimed {
		if err := e.confirmations.DeleteToken(ctx, token); err != nil {
			e.backendFailure(ctx, "confirmation token deletion failed", err, "user_id", token.UserID, "token_type", token.Type.String())
			return UpdateOutcome{}, ErrDeletion
		}
		if err := e.clearPending(ctx, token, outcome); err != nil {
			e.backendFailure(ctx, "pending update deletion failed", err, "user_id", token.UserID, "token_type", token.Type.String())
			return UpdateOutcome{}, ErrDeletion
		}
	}
	e.metricInc(MetricConfirmationRedeemed)

	switch token.Type {
	case confirmation.RegistrationConfirmation:
		e.metricInc(MetricRegistrationConfirmed)
	case confirmation.EmailChangeNew:
		e.metricInc(MetricEmailChanged)
	case confirmation.PasswordChange, confirmation.PasswordReset:
		if token.Type == confirmation.PasswordReset {
			e.metricInc(MetricPasswordReset)
		} else {
			e.metricInc(MetricPasswordChanged)
		}
		e.revokeSessions(ctx, token.UserID)
	case confirmation.UsernameChange:
		e.metricInc(MetricUsernameChanged)
	}

	if outcome.Event != "" {
		e.emitEvent(ctx, outcome.Event, token.UserID, token.UserID, nil)
	}

	if outcome.FollowUp != nil {
		data := map[string]string{"Username": outcome.User.Username}
		if err := e.deliver(ctx, outcome.Pending.NewValue, *outcome.FollowUp, data); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

// revokeSessions closes every session after a credential change. Sessions
// expire on their own, so a failure is only logged.
func (e *Engine) revokeSessions(ctx context.Context, userID string) {
	n, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		e.logger.WarnContext(ctx, "session revocation failed", "user_id", userID, "err", err)
		return
	}
	if n > 0 {
		e.emitEvent(ctx, EventSessionsRevoked, userID, userID, map[string]string{"reason": "credential_change"})
	}
}

// RequestPasswordReset sends a reset link to the local account owning email.
// Unknown, inactive and federated accounts and throttled resends all return
// nil so the response does not reveal which addresses exist.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.confirmations == nil {
		return ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return ErrInvalidInputData
	}

	if err := e.checkConfirmationRequest(ctx, strings.ToLower(email)); err != nil {
		return err
	}

	u, err := e.users.GetByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		e.backendFailure(ctx, "password reset lookup failed", err)
		return ErrBackendUnavailable
	}
	if !u.IsActive || !u.IsLocal() {
		return nil
	}

	existing, found, err := e.outstandingToken(ctx, u.ID, confirmation.PasswordReset)
	if err != nil {
		return err
	}

	var token ConfirmationToken
	if found {
		if _, ok := e.confirmations.NextAttemptAt(existing); !ok {
			e.metricInc(MetricConfirmationThrottled)
			return nil
		}
		token, err = e.confirmations.UpdateToken(ctx, existing)
	} else {
		token, err = e.confirmations.CreateToken(ctx, u.ID, confirmation.PasswordReset)
	}
	if err != nil {
		e.backendFailure(ctx, "password reset token failed", err, "user_id", u.ID)
		return ErrBackendUnavailable
	}

	e.metricInc(MetricPasswordResetRequested)
	return e.deliver(ctx, u.Email, token, map[string]string{"Username": u.Username})
}

// ConfirmPasswordReset redeems a reset token with a new password and closes
// every session of the account.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, value, newPassword string) error {
	if e == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}

	if err := e.confirmLimiter.CheckRedeem(ctx, ClientIPFromContext(ctx)); err != nil {
		return e.confirmationLimitError(ctx, err)
	}

	token, err := e.resolveToken(ctx, value, confirmation.PasswordReset)
	if err != nil {
		return err
	}

	hash, salt, err := e.hashNewPassword(newPassword)
	if err != nil {
		return err
	}
	if err := e.stagePending(ctx, PendingUserUpdate{
		ID:         token.UserID,
		NewValue:   hash,
		Salt:       salt,
		ChangeType: confirmation.PasswordReset,
	}); err != nil {
		e.backendFailure(ctx, "password reset staging failed", err, "user_id", token.UserID)
		return ErrBackendUnavailable
	}

	_, err = e.redeem(ctx, token)
	return err
}

// outstandingToken returns the current token of type t for userID, if any.
func (e *Engine) outstandingToken(ctx context.Context, userID string, t confirmation.TokenType) (ConfirmationToken, bool, error) {
	token, err := e.confirmations.GetTokenByUserID(ctx, userID, t)
	switch {
	case err == nil:
		return token, true, nil
	case errors.Is(err, confirmation.ErrTokenNotFound):
		return ConfirmationToken{}, false, nil
	default:
		e.backendFailure(ctx, "confirmation lookup failed", err, "user_id", userID, "token_type", t.String())
		return ConfirmationToken{}, false, ErrBackendUnavailable
	}
}

func (e *Engine) dropOutstanding(ctx context.Context, userID string, t confirmation.TokenType) error {
	token, found, err := e.outstandingToken(ctx, userID, t)
	if err != nil || !found {
		return err
	}
	if err := e.confirmations.DeleteToken(ctx, token); err != nil {
		e.backendFailure(ctx, "stale confirmation deletion failed", err, "user_id", userID, "token_type", t.String())
		return ErrBackendUnavailable
	}
	return nil
}

// ensureAvailable maps an identifier clash to its conflict error.
func (e *Engine) ensureAvailable(ctx context.Context, kind, value, userID string) error {
	taken, err := e.identifierTaken(ctx, kind, value, userID)
	if err != nil {
		e.backendFailure(ctx, "identifier availability check failed", err, "user_id", userID)
		return ErrBackendUnavailable
	}
	if !taken {
		return nil
	}
	if kind == reserveUsername {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}

func (e *Engine) hashNewPassword(pw string) (string, string, error) {
	if e.config.Password.MinEntropyBits > 0 {
		if err := password.CheckPolicy(pw, e.config.Password.MinEntropyBits); err != nil {
			return "", "", ErrPasswordPolicy
		}
	}
	hash, salt, err := e.passwordHash.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) {
			return "", "", ErrPasswordTooShort
		}
		return "", "", ErrPasswordChange
	}
	return hash, salt, nil
}

func (e *Engine) checkConfirmationRequest(ctx context.Context, subject string) error {
	if err := e.confirmLimiter.CheckRequest(ctx, subject, ClientIPFromContext(ctx)); err != nil {
		return e.confirmationLimitError(ctx, err)
	}
	return nil
}

func (e *Engine) confirmationLimitError(ctx context.Context, err error) error {
	if errors.Is(err, limiters.ErrConfirmationRateLimited) {
		e.metricInc(MetricConfirmationRateLimited)
		return ErrConfirmationRateLimited
	}
	e.backendFailure(ctx, "confirmation limiter unavailable", err)
	return ErrBackendUnavailable
}

// deliver sends the link for token to destination.
func (e *Engine) deliver(ctx context.Context, destination string, token ConfirmationToken, data map[string]string) error {
	link := e.confirmationLink(token)
	if err := e.notifier.SendConfirmationMessage(ctx, destination, token.Type, link, data); err != nil {
		e.metricInc(MetricNotificationFailure)
		e.logger.WarnContext(ctx, "confirmation delivery failed", "user_id", token.UserID, "token_type", token.Type.String(), "err", err)
		return ErrNotification
	}
	e.metricInc(MetricConfirmationIssued)
	e.emitEvent(ctx, EventConfirmationIssued, token.UserID, token.UserID, map[string]string{"token_type": token.Type.String()})
	return nil
}

// confirmationLink builds {BaseURL}{path}?token=...&type=....
func (e *Engine) confirmationLink(token ConfirmationToken) string {
	path := e.config.Links.ConfirmPath
	switch token.Type {
	case confirmation.RegistrationConfirmation:
		path = e.config.Links.RegistrationPath
	case confirmation.PasswordReset:
		path = e.config.Links.PasswordResetPath
	}

	q := url.Values{}
	q.Set("token", token.Value)
	q.Set("type", token.Type.String())
	return strings.TrimRight(e.config.Links.BaseURL, "/") + path + "?" + q.Encode()
}

// HasPendingUpdate reports whether a staged change of type t is waiting for
// userID.
func (e *Engine) HasPendingUpdate(ctx context.Context, userID string, t confirmation.TokenType) (bool, error) {
	if !t.Issuable() || t == confirmation.RoleChange {
		return false, ErrInvalidInputData
	}
	ok, err := e.cache.Exists(ctx, e.pendingKey(t, userID))
	if err != nil {
		e.backendFailure(ctx, "pending update lookup failed", err, "user_id", userID)
		return false, ErrBackendUnavailable
	}
	return ok, nil
}
