// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// DefaultCookieName is the session cookie read by the authentication
// middleware when no Authorization header is present.
const DefaultCookieName = "gatehouse_session"

// ExtractToken returns the session token from the request, preferring a
// "Bearer" Authorization header over the session cookie. An Authorization
// header using another scheme is ignored so the cookie still applies.
// Returns empty string if neither is present.
func ExtractToken(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// Authenticator wraps handlers with session verification. Requests
// without a valid session are rejected with 401 before the handler runs.
type Authenticator struct {
	svc        *auth.Service
	cookieName string
	logger     *slog.Logger
}

// NewAuthenticator creates an Authenticator backed by the given service.
// If cookieName is empty, DefaultCookieName is used.
func NewAuthenticator(svc *auth.Service, cookieName string, logger *slog.Logger) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authenticator{svc: svc, cookieName: cookieName, logger: logger}
}

// Middleware verifies the session token and stores the identity and raw
// token in the request context. Requests with a missing, invalid,
// expired, or revoked token are rejected with a single generic 401
// response.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r, a.cookieName)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		identity, err := a.svc.CurrentIdentity(r.Context(), token)
		if err != nil {
			a.logger.Debug("request rejected",
				"method", r.Method,
				"path", r.URL.Path,
			)
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}

		ctx := ContextWithIdentity(r.Context(), identity)
		ctx = ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
