package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/confirmation"
	"github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/middleware"
)

type server struct {
	engine *goIdentity.Engine
	logger *slog.Logger
}

func newRouter(engine *goIdentity.Engine, logger *slog.Logger, adminRole string) http.Handler {
	s := &server{engine: engine, logger: logger}

	r := mux.NewRouter()
	r.Use(middleware.ClientIP)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", prometheus.NewPrometheusExporter(engine).Handler()).Methods(http.MethodGet)

	// ---------- public ----------
	r.HandleFunc("/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/register/confirm", s.confirmRegistration).Methods(http.MethodGet)
	r.HandleFunc("/register/resend", s.resendRegistration).Methods(http.MethodPost)
	r.HandleFunc("/confirm", s.confirm).Methods(http.MethodGet)
	r.HandleFunc("/password/reset/request", s.requestPasswordReset).Methods(http.MethodPost)
	r.HandleFunc("/password/reset", s.confirmPasswordReset).Methods(http.MethodPost)
	r.HandleFunc("/login", s.login).Methods(http.MethodPost)
	r.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)

	// ---------- bearer ----------
	account := r.PathPrefix("/account").Subrouter()
	account.Use(middleware.Guard(engine))
	account.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	account.HandleFunc("/update", s.requestUpdate).Methods(http.MethodPost)
	account.HandleFunc("/resend", s.resend).Methods(http.MethodPost)
	account.HandleFunc("/pending/{type}", s.pending).Methods(http.MethodGet)

	// ---------- admin ----------
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.Guard(engine), middleware.RequireRole(adminRole))
	admin.HandleFunc("/users/{id}/role", s.changeRole).Methods(http.MethodPost)
	admin.HandleFunc("/security-report", s.securityReport).Methods(http.MethodGet)

	return r
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req goIdentity.RegistrationRequest
	if !decode(w, r, &req) {
		return
	}

	userID, err := s.engine.Register(r.Context(), req)
	if errors.Is(err, goIdentity.ErrNotification) {
		writeJSON(w, http.StatusAccepted, map[string]string{"user_id": userID, "error": err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

// resendRegistration is public because an unconfirmed account cannot log
// in. The engine limits it per user id and client IP, and the link only ever
// goes to the address staged at registration.
func (s *server) resendRegistration(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	next, err := s.engine.ResendConfirmation(r.Context(), body.UserID, confirmation.RegistrationConfirmation)
	if err != nil {
		s.writeThrottled(w, r, next, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) confirmRegistration(w http.ResponseWriter, r *http.Request) {
	err := s.engine.ConfirmToken(r.Context(), r.URL.Query().Get("token"), confirmation.RegistrationConfirmation, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t := confirmation.ParseTokenType(q.Get("type"))
	if err := s.engine.ConfirmToken(r.Context(), q.Get("token"), t, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.RequestPasswordReset(r.Context(), body.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ConfirmPasswordReset(r.Context(), body.Token, body.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	resp, err := s.engine.Login(r.Context(), body.Identifier, body.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID       string `json:"user_id"`
		RefreshToken string `json:"refresh_token"`
	}
	if !decode(w, r, &body) {
		return
	}
	resp, err := s.engine.Refresh(r.Context(), body.UserID, body.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var body struct {
		RefreshToken string `json:"refresh_token"`
		All          bool   `json:"all"`
	}
	if !decode(w, r, &body) {
		return
	}

	if body.All {
		n, err := s.engine.LogoutAll(r.Context(), id.UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"revoked": n})
		return
	}
	if err := s.engine.Logout(r.Context(), id.UserID, body.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) requestUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var req goIdentity.UpdateRequest
	if !decode(w, r, &req) {
		return
	}

	next, err := s.engine.RequestUserUpdate(r.Context(), id.UserID, req)
	if err != nil {
		s.writeThrottled(w, r, next, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"token_type": confirmation.DetermineTokenType(req).String(),
	})
}

func (s *server) resend(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var body struct {
		Type string `json:"type"`
	}
	if !decode(w, r, &body) {
		return
	}

	next, err := s.engine.ResendConfirmation(r.Context(), id.UserID, confirmation.ParseTokenType(body.Type))
	if err != nil {
		s.writeThrottled(w, r, next, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) pending(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	t := confirmation.ParseTokenType(mux.Vars(r)["type"])
	ok, err := s.engine.HasPendingUpdate(r.Context(), id.UserID, t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"pending": ok})
}

func (s *server) changeRole(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	var body struct {
		Role string `json:"role"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := s.engine.ChangeRole(r.Context(), id.UserID, mux.Vars(r)["id"], body.Role); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) securityReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.SecurityReport())
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

func statusFor(err error) int {
	switch {
	case errors.Is(err, goIdentity.ErrInvalidCredentials),
		errors.Is(err, goIdentity.ErrRefreshInvalid),
		errors.Is(err, goIdentity.ErrInvalidInput):
		return http.StatusUnauthorized
	case errors.Is(err, goIdentity.ErrPermissionDenied):
		return http.StatusForbidden
	}

	switch goIdentity.Classify(err) {
	case goIdentity.KindValidation:
		return http.StatusBadRequest
	case goIdentity.KindNotFound:
		return http.StatusNotFound
	case goIdentity.KindConflict:
		return http.StatusConflict
	case goIdentity.KindThrottled:
		return http.StatusTooManyRequests
	case goIdentity.KindExpired:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.WarnContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *server) writeThrottled(w http.ResponseWriter, r *http.Request, next string, err error) {
	if errors.Is(err, goIdentity.ErrResendThrottled) && next != "" {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error":        err.Error(),
			"next_attempt": next,
		})
		return
	}
	s.writeError(w, r, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
