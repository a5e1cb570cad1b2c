// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// RequestRecorder records per-request metrics. Satisfied by
// observability.Metrics.
type RequestRecorder interface {
	RecordRequest(method, route string, status int)
}

// API holds the HTTP handlers for the authentication endpoints.
type API struct {
	svc        *auth.Service
	resets     *auth.PasswordResetService
	cookieName string
	sessionTTL time.Duration
	logger     *slog.Logger
	recorder   RequestRecorder
}

// APIOptions configures optional API behavior.
type APIOptions struct {
	// CookieName is the session cookie name. Defaults to DefaultCookieName.
	CookieName string
	// SessionTTL bounds the session cookie lifetime. Defaults to
	// auth.DefaultSessionTTL.
	SessionTTL time.Duration
	// Logger defaults to a no-op logger.
	Logger *slog.Logger
	// Recorder receives per-request metrics. May be nil.
	Recorder RequestRecorder
}

// NewAPI creates the API handlers. The reset service may be nil, in which
// case the password reset endpoints are not registered.
func NewAPI(svc *auth.Service, resets *auth.PasswordResetService, opts APIOptions) (*API, error) {
	if svc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = auth.DefaultSessionTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &API{
		svc:        svc,
		resets:     resets,
		cookieName: opts.CookieName,
		sessionTTL: opts.SessionTTL,
		logger:     opts.Logger,
		recorder:   opts.Recorder,
	}, nil
}

// Register adds the API routes to the registry. Sign-up, sign-in,
// sign-out, and the password reset endpoints are exempt from
// authentication; everything else requires a valid session.
func (api *API) Register(reg *Registry) {
	api.register(reg, Route{Method: http.MethodPost, Path: "/v1/signup", Handler: api.handleSignUp, Exempt: true})
	api.register(reg, Route{Method: http.MethodPost, Path: "/v1/signin", Handler: api.handleSignIn, Exempt: true})
	api.register(reg, Route{Method: http.MethodPost, Path: "/v1/signout", Handler: api.handleSignOut, Exempt: true})
	api.register(reg, Route{Method: http.MethodGet, Path: "/v1/me", Handler: api.handleMe})
	api.register(reg, Route{Method: http.MethodPatch, Path: "/v1/me", Handler: api.handleUpdateProfile})
	api.register(reg, Route{Method: http.MethodPut, Path: "/v1/me/password", Handler: api.handleChangePassword})

	if api.resets != nil {
		api.register(reg, Route{Method: http.MethodPost, Path: "/v1/password-reset", Handler: api.handleRequestReset, Exempt: true})
		api.register(reg, Route{Method: http.MethodPost, Path: "/v1/password-reset/confirm", Handler: api.handleConfirmReset, Exempt: true})
	}
}

func (api *API) register(reg *Registry, route Route) {
	route.Handler = api.instrument(route.Path, route.Handler)
	reg.Register(route)
}

// statusWriter captures the response status for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (api *API) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	if api.recorder == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		api.recorder.RecordRequest(r.Method, route, sw.status)
	}
}

type identityResponse struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func newIdentityResponse(identity *auth.Identity) identityResponse {
	attrs := identity.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return identityResponse{
		ID:         identity.ID.String(),
		Email:      identity.Email,
		Attributes: attrs,
		CreatedAt:  identity.CreatedAt,
		UpdatedAt:  identity.UpdatedAt,
	}
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (api *API) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string            `json:"email"`
		Password   string            `json:"password"`
		Attributes map[string]string `json:"attributes"`
	}
	if !api.decode(w, r, &req) {
		return
	}

	session, token, err := api.svc.SignUp(r.Context(), req.Email, req.Password, req.Attributes)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	api.setSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, ExpiresAt: session.ExpiresAt})
}

func (api *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !api.decode(w, r, &req) {
		return
	}

	session, token, err := api.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	api.setSessionCookie(w, token, session.ExpiresAt)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: session.ExpiresAt})
}

// handleSignOut revokes the presented session. It never fails on an
// unknown or missing token; signing out is idempotent.
func (api *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := ExtractToken(r, api.cookieName)

	if err := api.svc.SignOut(r.Context(), token); err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	api.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	writeJSON(w, http.StatusOK, newIdentityResponse(identity))
}

func (api *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req struct {
		Attributes map[string]string `json:"attributes"`
	}
	if !api.decode(w, r, &req) {
		return
	}

	updated, err := api.svc.UpdateProfile(r.Context(), identity.ID, req.Attributes)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newIdentityResponse(updated))
}

func (api *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if !api.decode(w, r, &req) {
		return
	}

	if err := api.svc.ChangePassword(r.Context(), identity.ID, req.Password); err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	// All sessions were revoked, including the one used for this request.
	api.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleRequestReset always responds 202 regardless of whether the email
// is registered, so the endpoint cannot be used for enumeration. The
// plaintext token is handed to the delivery pipeline, never the response.
func (api *API) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !api.decode(w, r, &req) {
		return
	}

	token, err := api.resets.RequestReset(r.Context(), req.Email)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	if token != "" {
		// Delivery is out of band; the token is logged at debug level only
		// for development setups without a mail pipeline.
		api.logger.DebugContext(r.Context(), "password reset requested")
	}

	w.WriteHeader(http.StatusAccepted)
}

func (api *API) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !api.decode(w, r, &req) {
		return
	}

	if err := api.resets.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (api *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     api.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (api *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close() //nolint:errcheck // response already determined

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// writeServiceError maps service error codes to HTTP responses. Unknown
// codes are logged and collapse to a generic 500 so internal detail never
// reaches the client.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := ""
	if oopsErr, ok := oops.AsOops(err); ok {
		// Code() returns any; non-string codes fall through to the 500 branch.
		if c, ok := oopsErr.Code().(string); ok {
			code = c
		}
	}

	switch code {
	case "AUTH_INVALID_CREDENTIALS":
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case "AUTH_UNAUTHENTICATED":
		writeError(w, http.StatusUnauthorized, "unauthenticated")
	case "AUTH_DUPLICATE_EMAIL":
		writeError(w, http.StatusConflict, "email is already registered")
	case "AUTH_INVALID_EMAIL", "AUTH_EMPTY_PASSWORD", "AUTH_PASSWORD_TOO_LONG",
		"RESET_TOKEN_EMPTY", "RESET_TOKEN_INVALID", "RESET_TOKEN_EXPIRED",
		"RESET_PASSWORD_EMPTY":
		writeError(w, http.StatusUnprocessableEntity, publicMessage(err, "invalid request"))
	case "AUTH_IDENTITY_NOT_FOUND":
		writeError(w, http.StatusNotFound, "not found")
	default:
		api.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// publicMessage returns the top-level error message for client-facing
// validation failures.
func publicMessage(err error, fallback string) string {
	var oopsErr oops.OopsError
	if errors.As(err, &oopsErr) && oopsErr.Error() != "" {
		return oopsErr.Error()
	}
	if err != nil {
		return err.Error()
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client disconnect mid-response is not actionable
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
