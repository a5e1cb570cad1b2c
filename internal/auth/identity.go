// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Email validation constraints.
const MaxEmailLength = 254

// emailRegex is a pragmatic email shape check: one @, non-empty local part,
// domain with at least one dot. Full RFC 5322 validation is not attempted;
// the mailbox is proven by the reset flow, not the syntax.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Identity represents a registered user account.
type Identity struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Attributes   map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewIdentity creates a validated Identity. The email is normalized
// (trimmed, lowercased) before validation. Attributes may be nil.
func NewIdentity(email, passwordHash string, attributes map[string]string) (*Identity, error) {
	normalized := NormalizeEmail(email)
	if err := ValidateEmail(normalized); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	if attributes == nil {
		attributes = map[string]string{}
	}

	now := time.Now()
	return &Identity{
		ID:           ulid.Make(),
		Email:        normalized,
		PasswordHash: passwordHash,
		Attributes:   attributes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the address.
// All lookups and uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail validates an already-normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email address is malformed")
	}
	return nil
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity. The insert and the email uniqueness
	// check are a single atomic step; a losing concurrent create observes
	// an error wrapping ErrDuplicateEmail.
	Create(ctx context.Context, identity *Identity) error

	// GetByID retrieves an identity by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by normalized email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// UpdateAttributes replaces the profile attributes for an identity and
	// returns the updated record.
	UpdateAttributes(ctx context.Context, id ulid.ULID, attributes map[string]string) (*Identity, error)

	// UpdatePassword updates only the password hash for an identity.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
