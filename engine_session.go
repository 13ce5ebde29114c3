package goIdentity

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/refresh"
	"github.com/MrEthical07/goIdentity/user"
)

// Login verifies a username or email and password and opens a session.
func (e *Engine) Login(ctx context.Context, identifier, pw string) (LoginResponse, error) {
	if e == nil || e.passwordHash == nil {
		return LoginResponse{}, ErrEngineNotReady
	}
	ip := ClientIPFromContext(ctx)

	if err := e.rateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
		return LoginResponse{}, e.loginLimitError(ctx, err)
	}

	if identifier == "" || pw == "" {
		return LoginResponse{}, e.failLogin(ctx, identifier, ip)
	}

	u, err := e.lookupIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return LoginResponse{}, e.failLogin(ctx, identifier, ip)
		}
		e.backendFailure(ctx, "login lookup failed", err)
		return LoginResponse{}, ErrBackendUnavailable
	}
	if !u.IsLocal() || u.PasswordHash == "" {
		return LoginResponse{}, e.failLogin(ctx, identifier, ip)
	}

	ok, err := e.passwordHash.Verify(pw, u.PasswordHash, u.Salt)
	if err != nil || !ok {
		return LoginResponse{}, e.failLogin(ctx, identifier, ip)
	}
	if !u.IsActive {
		e.metricInc(MetricLoginFailure)
		return LoginResponse{}, ErrAccountInactive
	}

	if err := e.rateLimiter.ResetLogin(ctx, identifier); err != nil {
		e.logger.WarnContext(ctx, "login limiter reset failed", "user_id", u.ID, "err", err)
	}

	if e.config.Password.UpgradeOnLogin {
		e.upgradePasswordHash(ctx, u, pw)
	}

	resp, err := e.CreateLoginTokens(ctx, &u)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return LoginResponse{}, err
	}
	e.metricInc(MetricLoginSuccess)
	return resp, nil
}

func (e *Engine) lookupIdentifier(ctx context.Context, identifier string) (User, error) {
	if strings.Contains(identifier, "@") {
		return e.users.GetByEmail(ctx, identifier, true)
	}
	return e.users.GetByUsername(ctx, identifier, true)
}

func (e *Engine) failLogin(ctx context.Context, identifier, ip string) error {
	if err := e.rateLimiter.FailLogin(ctx, identifier, ip); err != nil {
		e.logger.WarnContext(ctx, "login limiter update failed", "err", err)
	}
	e.metricInc(MetricLoginFailure)
	return ErrInvalidCredentials
}

func (e *Engine) loginLimitError(ctx context.Context, err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricLoginRateLimited)
		return ErrLoginRateLimited
	}
	e.backendFailure(ctx, "login limiter unavailable", err)
	return ErrBackendUnavailable
}

// upgradePasswordHash rehashes with the current parameters. It is best effort
// and never blocks the login.
func (e *Engine) upgradePasswordHash(ctx context.Context, u User, pw string) {
	needs, err := e.passwordHash.NeedsUpgrade(u.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, salt, err := e.passwordHash.Hash(pw)
	if err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade generation failed", "user_id", u.ID)
		return
	}
	u.PasswordHash = hash
	u.Salt = salt
	u.Modified = e.now()
	if err := e.users.Update(ctx, u); err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade update failed", "user_id", u.ID, "err", err)
	}
}

// CreateLoginTokens opens a refresh session for u and signs a bearer
// credential carrying its id and role.
func (e *Engine) CreateLoginTokens(ctx context.Context, u *User) (LoginResponse, error) {
	if u == nil || u.ID == "" {
		return LoginResponse{}, ErrInvalidInputData
	}

	token, err := e.sessions.CreateRefreshToken(u.ID)
	if err != nil {
		e.metricInc(MetricSessionCreateFailure)
		return LoginResponse{}, ErrSessionCreation
	}
	if err := e.sessions.AddToken(ctx, token); err != nil {
		e.metricInc(MetricSessionCreateFailure)
		e.logger.WarnContext(ctx, "session persistence failed", "user_id", u.ID, "err", err)
		return LoginResponse{}, ErrSessionCreation
	}

	bearer, err := e.jwtManager.Issue(u.ID, u.Role, e.config.JWT.AccessTTL)
	if err != nil {
		e.metricInc(MetricSessionCreateFailure)
		e.logger.WarnContext(ctx, "bearer issue failed", "user_id", u.ID, "err", err)
		return LoginResponse{}, ErrSessionCreation
	}

	e.metricInc(MetricSessionCreated)
	return LoginResponse{
		UserID:       u.ID,
		Bearer:       bearer,
		RefreshToken: token.Value,
	}, nil
}

// RefreshLoginTokens rotates token and signs a new bearer credential for its
// owner. The previous refresh value stops working.
func (e *Engine) RefreshLoginTokens(ctx context.Context, token *RefreshToken) (LoginResponse, error) {
	if token == nil {
		e.metricInc(MetricRefreshFailure)
		return LoginResponse{}, ErrInvalidOperation
	}

	owner, err := e.users.GetByID(ctx, token.UserID)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, user.ErrNotFound) {
			return LoginResponse{}, ErrUserNotFound
		}
		e.backendFailure(ctx, "refresh owner lookup failed", err, "user_id", token.UserID)
		return LoginResponse{}, ErrBackendUnavailable
	}

	value, err := e.sessions.UpdateTokenDb(ctx, *token)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if !errors.Is(err, refresh.ErrInvalidInput) {
			e.logger.WarnContext(ctx, "refresh rotation failed", "user_id", token.UserID, "err", err)
		}
		return LoginResponse{}, ErrInvalidOperation
	}

	bearer, err := e.jwtManager.Issue(owner.ID, owner.Role, e.config.JWT.AccessTTL)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.logger.WarnContext(ctx, "bearer issue failed", "user_id", owner.ID, "err", err)
		return LoginResponse{}, ErrInvalidOperation
	}

	e.metricInc(MetricRefreshSuccess)
	return LoginResponse{
		UserID:       owner.ID,
		Bearer:       bearer,
		RefreshToken: value,
	}, nil
}

// Refresh validates (userID, value) and rotates it.
func (e *Engine) Refresh(ctx context.Context, userID, value string) (LoginResponse, error) {
	if err := e.rateLimiter.CheckRefresh(ctx, userID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			return LoginResponse{}, ErrRefreshRateLimited
		}
		e.backendFailure(ctx, "refresh limiter unavailable", err)
		return LoginResponse{}, ErrBackendUnavailable
	}

	token, err := e.sessions.ValidateRefreshToken(ctx, userID, value)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		switch {
		case errors.Is(err, refresh.ErrInvalidInput):
			return LoginResponse{}, ErrInvalidInput
		case errors.Is(err, refresh.ErrTokenExpired):
			return LoginResponse{}, ErrTokenExpired
		default:
			e.backendFailure(ctx, "refresh lookup failed", err, "user_id", userID)
			return LoginResponse{}, ErrBackendUnavailable
		}
	}

	return e.RefreshLoginTokens(ctx, &token)
}

// Logout ends the session identified by (userID, value).
func (e *Engine) Logout(ctx context.Context, userID, value string) error {
	if value == "" {
		return ErrRefreshInvalid
	}

	token, err := e.sessions.FindToken(ctx, userID, value)
	if err != nil {
		if errors.Is(err, refresh.ErrNotFound) || errors.Is(err, refresh.ErrInvalidInput) {
			return ErrUserNotFound
		}
		e.backendFailure(ctx, "logout lookup failed", err, "user_id", userID)
		return ErrBackendUnavailable
	}

	if err := e.sessions.DeleteToken(ctx, token); err != nil {
		e.logger.WarnContext(ctx, "logout deletion failed", "user_id", userID, "err", err)
		return ErrDeletion
	}

	e.metricInc(MetricLogout)
	return nil
}

// LogoutAll ends every session of userID and returns how many were closed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidInputData
	}
	n, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		e.logger.WarnContext(ctx, "logout all failed", "user_id", userID, "err", err)
		return 0, ErrDeletion
	}
	e.metricInc(MetricLogoutAll)
	if n > 0 {
		e.emitEvent(ctx, EventSessionsRevoked, userID, userID, nil)
	}
	return n, nil
}
