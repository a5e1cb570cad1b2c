// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package httpapi exposes the authentication service over HTTP with JSON
// request and response bodies. Authentication is enforced by middleware;
// handlers read the verified identity from the request context.
package httpapi

import (
	"context"

	"github.com/gatehouse/gatehouse/internal/auth"
)

type contextKey int

const (
	identityKey contextKey = iota
	tokenKey
)

// ContextWithIdentity returns a context carrying the verified identity.
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the verified identity stored by the
// authentication middleware, or false if the request was not
// authenticated.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*auth.Identity)
	return identity, ok
}

// ContextWithToken returns a context carrying the raw session token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the raw session token stored by the
// authentication middleware, or false if none was presented.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}
