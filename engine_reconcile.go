package goIdentity

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/cache"
	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/user"
)

// Reservation kinds. A reservation key holds the id of the user that claimed
// the value while its change is pending.
const (
	reserveUsername = "Username"
	reserveEmail    = "Email"
)

var errPendingMissing = errors.New("pending update missing")

// UpdateOutcome is the result of applying one confirmation token.
type UpdateOutcome struct {
	Type confirmation.TokenType
	// User is the record after the change. It is zero for EmailChangeOld,
	// which changes nothing durable.
	User User
	// Pending is the staged change that was applied. Registration carries
	// none.
	Pending PendingUserUpdate
	// FollowUp is the EmailChangeNew token minted by EmailChangeOld.
	FollowUp *ConfirmationToken
	Event    string
}

// pendingScope groups token types that share one staged change. Both email
// tokens read the same staged address.
func pendingScope(t confirmation.TokenType) string {
	switch t {
	case confirmation.RegistrationConfirmation:
		return "Registration"
	case confirmation.EmailChangeOld, confirmation.EmailChangeNew:
		return "Email"
	case confirmation.PasswordChange:
		return "Password"
	case confirmation.PasswordReset:
		return "PasswordReset"
	case confirmation.UsernameChange:
		return "Username"
	default:
		return ""
	}
}

func (e *Engine) pendingKey(t confirmation.TokenType, userID string) string {
	return cache.Key(e.config.Pending.Prefix, pendingScope(t), userID)
}

func (e *Engine) reservationKey(kind, value string) string {
	return cache.Key(e.config.Pending.ReservationPrefix, kind, strings.ToLower(value))
}

func (e *Engine) stagePending(ctx context.Context, p PendingUserUpdate) error {
	return cache.PutValue(ctx, e.cache, cache.JSON[PendingUserUpdate]{}, e.pendingKey(p.ChangeType, p.ID), p, e.config.Pending.TTL)
}

// loadPending returns the staged change for (userID, t) or errPendingMissing.
func (e *Engine) loadPending(ctx context.Context, userID string, t confirmation.TokenType) (PendingUserUpdate, error) {
	p, err := cache.GetValue(ctx, e.cache, cache.JSON[PendingUserUpdate]{}, e.pendingKey(t, userID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return PendingUserUpdate{}, errPendingMissing
		}
		return PendingUserUpdate{}, err
	}
	if p.ID != userID || pendingScope(p.ChangeType) != pendingScope(t) {
		return PendingUserUpdate{}, errPendingMissing
	}
	return p, nil
}

func (e *Engine) stageRegistration(ctx context.Context, u User) error {
	return cache.PutValue(ctx, e.cache, cache.JSON[User]{}, e.pendingKey(confirmation.RegistrationConfirmation, u.ID), u, e.config.Pending.TTL)
}

func (e *Engine) loadRegistration(ctx context.Context, userID string) (User, error) {
	u, err := cache.GetValue(ctx, e.cache, cache.JSON[User]{}, e.pendingKey(confirmation.RegistrationConfirmation, userID))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return User{}, errPendingMissing
		}
		return User{}, err
	}
	if u.ID != userID {
		return User{}, errPendingMissing
	}
	return u, nil
}

func (e *Engine) reserve(ctx context.Context, kind, value, userID string) error {
	return e.cache.Put(ctx, e.reservationKey(kind, value), []byte(userID), e.config.Pending.TTL)
}

// releaseReservation drops the reservation of value if userID still holds
// it. Reservations expire on their own, so failures are only logged.
func (e *Engine) releaseReservation(ctx context.Context, kind, value, userID string) {
	if value == "" {
		return
	}
	key := e.reservationKey(kind, value)
	holder, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			e.logger.WarnContext(ctx, "reservation lookup failed", "user_id", userID, "err", err)
		}
		return
	}
	if string(holder) != userID {
		return
	}
	if _, err := e.cache.Delete(ctx, key); err != nil {
		e.logger.WarnContext(ctx, "reservation release failed", "user_id", userID, "err", err)
	}
}

// identifierTaken reports whether value is claimed by anyone but userID.
// In-flight reservations are checked first, then the durable store. The two
// checks are not atomic.
func (e *Engine) identifierTaken(ctx context.Context, kind, value, userID string) (bool, error) {
	holder, err := e.cache.Get(ctx, e.reservationKey(kind, value))
	switch {
	case err == nil:
		if string(holder) != userID {
			return true, nil
		}
	case !errors.Is(err, cache.ErrMiss):
		return false, err
	}

	var u User
	if kind == reserveUsername {
		u, err = e.users.GetByUsername(ctx, value, true)
	} else {
		u, err = e.users.GetByEmail(ctx, value, true)
	}
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return u.ID != userID, nil
}

// ExecuteUserUpdateFromToken applies the change gated by a resolved token.
// Every type except RegistrationConfirmation needs a matching staged change;
// a missing one is reported as ErrInvalidToken. It neither deletes the token
// nor the staged change.
func (e *Engine) ExecuteUserUpdateFromToken(ctx context.Context, token ConfirmationToken) (UpdateOutcome, error) {
	if token.UserID == "" {
		return UpdateOutcome{}, ErrInvalidToken
	}

	switch token.Type {
	case confirmation.RegistrationConfirmation:
		return e.applyRegistration(ctx, token)
	case confirmation.EmailChangeOld,
		confirmation.EmailChangeNew,
		confirmation.PasswordChange,
		confirmation.PasswordReset,
		confirmation.UsernameChange:
	default:
		return UpdateOutcome{}, ErrInvalidToken
	}

	pending, err := e.loadPending(ctx, token.UserID, token.Type)
	if err != nil {
		if errors.Is(err, errPendingMissing) {
			return UpdateOutcome{}, ErrInvalidToken
		}
		e.backendFailure(ctx, "pending update lookup failed", err, "user_id", token.UserID, "token_type", token.Type.String())
		return UpdateOutcome{}, ErrBackendUnavailable
	}
	if pending.NewValue == "" {
		return UpdateOutcome{}, ErrInvalidToken
	}

	switch token.Type {
	case confirmation.EmailChangeOld:
		return e.applyEmailChangeOld(ctx, token, pending)
	case confirmation.EmailChangeNew:
		return e.applyUserChange(ctx, token, pending, ErrEmailChange, EventEmailChanged, func(u *User) {
			u.Email = pending.NewValue
		})
	case confirmation.PasswordChange, confirmation.PasswordReset:
		if pending.Salt == "" {
			return UpdateOutcome{}, ErrInvalidToken
		}
		event := EventPasswordChanged
		if token.Type == confirmation.PasswordReset {
			event = EventPasswordReset
		}
		return e.applyUserChange(ctx, token, pending, ErrPasswordChange, event, func(u *User) {
			u.PasswordHash = pending.NewValue
			u.Salt = pending.Salt
		})
	default:
		return e.applyUserChange(ctx, token, pending, ErrUsernameChange, EventUsernameChanged, func(u *User) {
			u.Username = pending.NewValue
		})
	}
}

func (e *Engine) applyRegistration(ctx context.Context, token ConfirmationToken) (UpdateOutcome, error) {
	staged, err := e.loadRegistration(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, errPendingMissing) {
			return UpdateOutcome{}, ErrInvalidToken
		}
		e.backendFailure(ctx, "staged registration lookup failed", err, "user_id", token.UserID)
		return UpdateOutcome{}, ErrBackendUnavailable
	}

	staged.IsActive = true
	staged.Modified = e.now()
	if err := e.users.Create(ctx, staged); err != nil {
		if errors.Is(err, user.ErrUsernameTaken) || errors.Is(err, user.ErrEmailTaken) {
			return UpdateOutcome{}, err
		}
		e.backendFailure(ctx, "activation failed", err, "user_id", token.UserID)
		return UpdateOutcome{}, ErrActivation
	}

	return UpdateOutcome{
		Type:  token.Type,
		User:  staged,
		Event: EventUserActivated,
	}, nil
}

// applyEmailChangeOld confirms control of the old address and hands the
// change over to a new token for the new address. The new token keeps the
// attempt lineage of the old one.
func (e *Engine) applyEmailChangeOld(ctx context.Context, token ConfirmationToken, pending PendingUserUpdate) (UpdateOutcome, error) {
	next, err := e.confirmations.CreateLinkedToken(ctx, token, confirmation.EmailChangeNew)
	if err != nil {
		e.backendFailure(ctx, "email follow-up token failed", err, "user_id", token.UserID)
		return UpdateOutcome{}, ErrEmailChange
	}
	return UpdateOutcome{
		Type:     token.Type,
		Pending:  pending,
		FollowUp: &next,
	}, nil
}

func (e *Engine) applyUserChange(
	ctx context.Context,
	token ConfirmationToken,
	pending PendingUserUpdate,
	failure error,
	event string,
	mutate func(*User),
) (UpdateOutcome, error) {
	u, err := e.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return UpdateOutcome{}, ErrUserNotFound
		}
		e.backendFailure(ctx, "user lookup failed", err, "user_id", token.UserID, "token_type", token.Type.String())
		return UpdateOutcome{}, failure
	}

	mutate(&u)
	u.Modified = e.now()
	if err := e.users.Update(ctx, u); err != nil {
		if errors.Is(err, user.ErrUsernameTaken) || errors.Is(err, user.ErrEmailTaken) {
			return UpdateOutcome{}, err
		}
		e.backendFailure(ctx, "user update failed", err, "user_id", token.UserID, "token_type", token.Type.String())
		return UpdateOutcome{}, failure
	}

	return UpdateOutcome{
		Type:    token.Type,
		User:    u,
		Pending: pending,
		Event:   event,
	}, nil
}

// clearPending removes the staged change of a redeemed token and releases
// its reservations.
func (e *Engine) clearPending(ctx context.Context, token ConfirmationToken, outcome UpdateOutcome) error {
	if _, err := e.cache.Delete(ctx, e.pendingKey(token.Type, token.UserID)); err != nil {
		return err
	}

	switch token.Type {
	case confirmation.RegistrationConfirmation:
		e.releaseReservation(ctx, reserveUsername, outcome.User.Username, token.UserID)
		e.releaseReservation(ctx, reserveEmail, outcome.User.Email, token.UserID)
	case confirmation.EmailChangeNew:
		e.releaseReservation(ctx, reserveEmail, outcome.Pending.NewValue, token.UserID)
	case confirmation.UsernameChange:
		e.releaseReservation(ctx, reserveUsername, outcome.Pending.NewValue, token.UserID)
	}
	return nil
}

// ChangeRole sets the role of targetID. The actor must outrank the target's
// current role and must not grant a role above its own.
func (e *Engine) ChangeRole(ctx context.Context, actorID, targetID, role string) error {
	if actorID == "" || targetID == "" || role == "" {
		return ErrInvalidInputData
	}
	if _, ok := e.roleRank[role]; !ok {
		return ErrInvalidInputData
	}
	if actorID == targetID {
		return ErrPermissionDenied
	}

	actor, err := e.users.GetByID(ctx, actorID)
	if err != nil {
		return e.lookupError(ctx, err, actorID)
	}
	target, err := e.users.GetByID(ctx, targetID)
	if err != nil {
		return e.lookupError(ctx, err, targetID)
	}

	if !e.outranks(actor.Role, target.Role) || e.outranks(role, actor.Role) {
		return ErrPermissionDenied
	}
	if target.Role == role {
		return nil
	}

	previous := target.Role
	target.Role = role
	target.Modified = e.now()
	if err := e.users.Update(ctx, target); err != nil {
		e.backendFailure(ctx, "role update failed", err, "user_id", targetID)
		return ErrRoleChange
	}

	e.metricInc(MetricRoleChanged)
	e.emitEvent(ctx, EventRoleChanged, targetID, actorID, map[string]string{
		"from": previous,
		"to":   role,
	})
	return nil
}

// outranks reports whether role a sits strictly above role b. Unknown roles
// rank below everything.
func (e *Engine) outranks(a, b string) bool {
	if len(e.roleRank) == 0 {
		panic("goIdentity: role comparison without a configured role hierarchy")
	}
	ra, ok := e.roleRank[a]
	if !ok {
		return false
	}
	rb, ok := e.roleRank[b]
	if !ok {
		return true
	}
	return ra > rb
}

func (e *Engine) lookupError(ctx context.Context, err error, userID string) error {
	if errors.Is(err, user.ErrNotFound) {
		return ErrUserNotFound
	}
	e.backendFailure(ctx, "user lookup failed", err, "user_id", userID)
	return ErrBackendUnavailable
}
