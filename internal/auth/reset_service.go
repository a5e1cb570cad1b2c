// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PasswordResetService handles the password reset flow.
type PasswordResetService struct {
	identities IdentityRepository
	resets     PasswordResetRepository
	issuer     *Issuer
	hasher     PasswordHasher
	ttl        time.Duration
	logger     *slog.Logger
}

// NewPasswordResetService creates a new PasswordResetService with a
// discard logger. A non-positive ttl falls back to DefaultResetTokenTTL.
func NewPasswordResetService(identities IdentityRepository, resets PasswordResetRepository, issuer *Issuer, hasher PasswordHasher, ttl time.Duration) (*PasswordResetService, error) {
	return NewPasswordResetServiceWithLogger(identities, resets, issuer, hasher, ttl, slog.New(slog.DiscardHandler))
}

// NewPasswordResetServiceWithLogger creates a new PasswordResetService
// with the provided logger. Returns an error if any required dependency
// is nil.
func NewPasswordResetServiceWithLogger(identities IdentityRepository, resets PasswordResetRepository, issuer *Issuer, hasher PasswordHasher, ttl time.Duration, logger *slog.Logger) (*PasswordResetService, error) {
	if identities == nil {
		return nil, oops.Errorf("identities repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("resets repository is required")
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
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &PasswordResetService{
		identities: identities,
		resets:     resets,
		issuer:     issuer,
		hasher:     hasher,
		ttl:        ttl,
		logger:     logger,
	}, nil
}

// RequestReset requests a password reset for an identity by email.
// If the identity exists, generates a reset token and stores the hash.
// Returns the plaintext token for sending via email (email sending is NOT this service's job).
// If the identity doesn't exist, returns success anyway (empty token) to prevent email enumeration.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (string, error) {
	identity, err := s.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Return success with empty token to prevent email enumeration
			return "", nil
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GetByEmail").
			Wrap(err)
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "GenerateResetToken").
			Wrap(err)
	}

	reset, err := NewPasswordReset(identity.ID, hash, time.Now().Add(s.ttl))
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "NewPasswordReset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Create").
			Wrap(err)
	}

	return token, nil
}

// ValidateToken validates a reset token and returns the associated identity ID.
// Returns an error if the token is invalid, expired, or not found.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (ulid.ULID, error) {
	if token == "" {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EMPTY").Errorf("reset token cannot be empty")
	}

	hash := hashResetToken(token)

	reset, err := s.resets.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ulid.ULID{}, oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return ulid.ULID{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "GetByTokenHash").
			Wrap(err)
	}

	if reset.IsExpired() {
		return ulid.ULID{}, oops.Code("RESET_TOKEN_EXPIRED").Errorf("reset token has expired")
	}

	return reset.IdentityID, nil
}

// ResetPassword resets an identity's password using a valid reset token.
// Validates the token, hashes the new password, updates the identity,
// deletes the identity's reset tokens, and revokes all of its sessions so
// stolen credentials cannot keep an old session alive.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string) error {
	// Validate password first (defense in depth - hasher also checks, but be explicit)
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Errorf("new password cannot be empty")
	}

	identityID, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err // Already has appropriate error code
	}

	hashedPassword, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "Hash").
			Wrap(err)
	}

	if err := s.identities.UpdatePassword(ctx, identityID, hashedPassword); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "UpdatePassword").
			Wrap(err)
	}

	if err := s.issuer.RevokeAllForIdentity(ctx, identityID); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "RevokeAllForIdentity").
			Wrap(err)
	}

	// Delete all reset tokens for the identity. The password is already
	// updated, so a cleanup failure does not fail the call, but a surviving
	// token would still be redeemable until it expires - make it visible.
	if err := s.resets.DeleteByIdentity(ctx, identityID); err != nil {
		s.logger.WarnContext(ctx, "reset token cleanup failed",
			"identity_id", identityID.String(),
			"error", err)
	}

	return nil
}
