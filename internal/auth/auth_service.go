// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PermittedFields holds the per-operation attribute allow-lists.
// Configured once at startup; the zero value permits nothing.
type PermittedFields struct {
	SignUp        PermittedFieldSet
	ProfileUpdate PermittedFieldSet
}

// Service provides sign-up, sign-in, sign-out, and account update operations.
type Service struct {
	identities IdentityRepository
	issuer     *Issuer
	hasher     PasswordHasher
	permitted  PermittedFields
	logger     *slog.Logger
}

// NewService creates a new Service with a no-op logger.
func NewService(identities IdentityRepository, issuer *Issuer, hasher PasswordHasher, permitted PermittedFields) (*Service, error) {
	return NewServiceWithLogger(identities, issuer, hasher, permitted, slog.New(slog.DiscardHandler))
}

// NewServiceWithLogger creates a new Service with the provided logger.
// Returns an error if any required dependency is nil.
func NewServiceWithLogger(identities IdentityRepository, issuer *Issuer, hasher PasswordHasher, permitted PermittedFields, logger *slog.Logger) (*Service, error) {
	if identities == nil {
		return nil, oops.Errorf("identities repository is required")
	}
	if issuer == nil {
		return nil, oops.Errorf("session issuer is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Service{
		identities: identities,
		issuer:     issuer,
		hasher:     hasher,
		permitted:  permitted,
		logger:     logger,
	}, nil
}

// decoyPasswordHash is used when no identity matches the email to keep the
// response time of SignIn uniform. We still run password verification so an
// attacker cannot distinguish "unknown email" from "wrong password".
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const decoyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// SignUp registers a new identity and issues its first session.
// Attributes are filtered to the sign-up permitted field set; non-permitted
// keys are silently dropped. Returns the session and plaintext token.
func (s *Service) SignUp(ctx context.Context, email, password string, attributes map[string]string) (*Session, string, error) {
	normalized := NormalizeEmail(email)
	if err := ValidateEmail(normalized); err != nil {
		RecordSignUp(StatusValidationError)
		return nil, "", err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if oopsErr, ok := oops.AsOops(err); ok && (oopsErr.Code() == "AUTH_EMPTY_PASSWORD" || oopsErr.Code() == "AUTH_PASSWORD_TOO_LONG") {
			RecordSignUp(StatusValidationError)
			return nil, "", err
		}
		RecordSignUp(StatusError)
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	identity, err := NewIdentity(normalized, hash, s.permitted.SignUp.Filter(attributes))
	if err != nil {
		RecordSignUp(StatusValidationError)
		return nil, "", err
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			RecordSignUp(StatusDuplicateEmail)
			return nil, "", oops.Code("AUTH_DUPLICATE_EMAIL").
				Errorf("email is already registered")
		}
		RecordSignUp(StatusError)
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create identity").
			Wrap(err)
	}

	session, token, err := s.issuer.Issue(ctx, identity.ID)
	if err != nil {
		RecordSignUp(StatusError)
		return nil, "", oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "identity created", "identity_id", identity.ID.String())
	RecordSignUp(StatusSuccess)
	return session, token, nil
}

// SignIn authenticates an identity by email and password and issues a session.
// Uses constant-time operations to prevent timing-based email enumeration:
// an unknown email and a wrong password take the same code path and return
// the same AUTH_INVALID_CREDENTIALS error.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, string, error) {
	identity, lookupErr := s.identities.GetByEmail(ctx, NormalizeEmail(email))

	// Determine which hash to verify against (real or decoy for timing attack prevention)
	var targetHash string
	var identityExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use decoy hash - still perform verification to maintain constant time
			targetHash = decoyPasswordHash
			identityExists = false
		} else {
			RecordSignIn(StatusError)
			return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
				With("operation", "get identity by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = identity.PasswordHash
		identityExists = true
	}

	// Always verify password (constant-time operation for timing attack prevention)
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// For decoy hash verification errors, just treat as invalid
		if !identityExists {
			RecordSignIn(StatusInvalidCredentials)
			return nil, "", s.invalidCredentials()
		}
		RecordSignIn(StatusError)
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If identity doesn't exist OR password invalid, return same error
	if !identityExists || !valid {
		RecordSignIn(StatusInvalidCredentials)
		return nil, "", s.invalidCredentials()
	}

	session, token, err := s.issuer.Issue(ctx, identity.ID)
	if err != nil {
		RecordSignIn(StatusError)
		return nil, "", oops.Code("AUTH_SIGNIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}

	RecordSignIn(StatusSuccess)
	return session, token, nil
}

// invalidCredentials builds the single generic credential failure. The
// message never names which factor was wrong, and neither do the logs.
func (s *Service) invalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
}

// SignOut revokes the session for the given plaintext token.
// Idempotent: signing out an unknown or already-revoked token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.issuer.Revoke(ctx, token)
}

// UpdateProfile updates an identity's profile attributes, filtered to the
// profile-update permitted field set. Non-permitted keys (email included,
// unless explicitly permitted) are silently dropped.
func (s *Service) UpdateProfile(ctx context.Context, identityID ulid.ULID, attributes map[string]string) (*Identity, error) {
	current, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_IDENTITY_NOT_FOUND").
				With("identity_id", identityID.String()).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_UPDATE_PROFILE_FAILED").
			With("operation", "get identity by id").
			Wrap(err)
	}

	merged := make(map[string]string, len(current.Attributes))
	for key, value := range current.Attributes {
		merged[key] = value
	}
	for key, value := range s.permitted.ProfileUpdate.Filter(attributes) {
		merged[key] = value
	}

	updated, err := s.identities.UpdateAttributes(ctx, identityID, merged)
	if err != nil {
		return nil, oops.Code("AUTH_UPDATE_PROFILE_FAILED").
			With("operation", "update attributes").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return updated, nil
}

// ChangePassword rehashes and stores a new password for the identity, then
// revokes all of its existing sessions.
func (s *Service) ChangePassword(ctx context.Context, identityID ulid.ULID, newPassword string) error {
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := s.identities.UpdatePassword(ctx, identityID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_IDENTITY_NOT_FOUND").
				With("identity_id", identityID.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	if err := s.issuer.RevokeAllForIdentity(ctx, identityID); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "revoke sessions").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password changed, sessions revoked", "identity_id", identityID.String())
	return nil
}

// CurrentIdentity resolves a plaintext session token to its identity.
// Any token failure (invalid, expired, revoked) and a dangling identity
// reference all surface as AUTH_UNAUTHENTICATED; internal lookup misses are
// never exposed as a distinct public error kind.
func (s *Service) CurrentIdentity(ctx context.Context, token string) (*Identity, error) {
	identityID, err := s.issuer.Validate(ctx, token)
	if err != nil {
		if oopsErr, ok := oops.AsOops(err); ok {
			switch oopsErr.Code() {
			case "SESSION_INVALID", "SESSION_EXPIRED", "SESSION_REVOKED":
				return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(err)
			}
		}
		return nil, oops.Code("AUTH_CURRENT_IDENTITY_FAILED").
			With("operation", "validate session").
			Wrap(err)
	}

	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Session outlived its identity; treat as not authenticated.
			return nil, oops.Code("AUTH_UNAUTHENTICATED").Wrap(err)
		}
		return nil, oops.Code("AUTH_CURRENT_IDENTITY_FAILED").
			With("operation", "get identity by id").
			Wrap(err)
	}

	return identity, nil
}
