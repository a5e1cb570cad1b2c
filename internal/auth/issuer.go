// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Issuer creates, validates, and revokes session tokens.
//
// Per-token state machine: Active --expiry elapses--> Expired,
// Active --Revoke--> Revoked. Both end states are terminal; validity is
// re-checked on every Validate call, never cached.
type Issuer struct {
	sessions SessionRepository
	ttl      time.Duration
}

// NewIssuer creates a new Issuer. A non-positive ttl falls back to
// DefaultSessionTTL; a ttl below MinSessionTTL is rejected.
func NewIssuer(sessions SessionRepository, ttl time.Duration) (*Issuer, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if ttl < MinSessionTTL {
		return nil, oops.Code("SESSION_TTL_INVALID").
			With("ttl", ttl.String()).
			Errorf("session TTL must be at least %s", MinSessionTTL)
	}
	return &Issuer{sessions: sessions, ttl: ttl}, nil
}

// TTL returns the configured session lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a session for the identity and persists it.
// Returns the session and the plaintext token for the client.
func (i *Issuer) Issue(ctx context.Context, identityID ulid.ULID) (*Session, string, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	session, err := NewSession(identityID, tokenHash, time.Now().Add(i.ttl))
	if err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	if err := i.sessions.Create(ctx, session); err != nil {
		return nil, "", oops.Code("SESSION_ISSUE_FAILED").
			With("operation", "persist session").
			Wrap(err)
	}

	return session, token, nil
}

// Validate checks a plaintext token and returns the owning identity ID.
// Failures carry one of three codes: SESSION_INVALID for unknown or empty
// tokens, SESSION_EXPIRED past the expiry, SESSION_REVOKED after revocation.
func (i *Issuer) Validate(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		RecordSessionValidation(ValidationInvalid)
		return ulid.ULID{}, oops.Code("SESSION_INVALID").Errorf("session token cannot be empty")
	}

	tokenHash := HashSessionToken(token)

	session, err := i.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			RecordSessionValidation(ValidationInvalid)
			return ulid.ULID{}, oops.Code("SESSION_INVALID").Errorf("invalid session token")
		}
		return ulid.ULID{}, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	// Revocation wins over expiry when both hold.
	if session.Revoked {
		RecordSessionValidation(ValidationRevoked)
		return ulid.ULID{}, oops.Code("SESSION_REVOKED").Errorf("session has been revoked")
	}
	if session.IsExpired() {
		RecordSessionValidation(ValidationExpired)
		return ulid.ULID{}, oops.Code("SESSION_EXPIRED").Errorf("session has expired")
	}

	RecordSessionValidation(ValidationOK)
	return session.IdentityID, nil
}

// Revoke invalidates the session for a plaintext token.
// Idempotent: revoking an unknown or already-revoked token is a no-op.
func (i *Issuer) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := i.sessions.Revoke(ctx, HashSessionToken(token)); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("operation", "revoke session").
			Wrap(err)
	}
	return nil
}

// RevokeAllForIdentity invalidates every session owned by an identity.
// Used on password change to prevent stale-credential session hijack.
func (i *Issuer) RevokeAllForIdentity(ctx context.Context, identityID ulid.ULID) error {
	if err := i.sessions.RevokeAllForIdentity(ctx, identityID); err != nil {
		return oops.Code("SESSION_REVOKE_ALL_FAILED").
			With("operation", "revoke sessions for identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}
