// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres provides PostgreSQL implementations of auth repositories.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// DB is the subset of pgxpool.Pool used by the repositories.
// pgxmock pools satisfy it for tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	pool DB
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(pool DB) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Create stores a new identity. Email uniqueness rides on a unique index
// over LOWER(email), so the check and the insert are one atomic step; a
// concurrent duplicate surfaces as an error wrapping auth.ErrDuplicateEmail.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	attrsJSON, err := json.Marshal(identity.Attributes)
	if err != nil {
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "marshal attributes").
			Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO identities (id, email, password_hash, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		identity.ID.String(),
		identity.Email,
		identity.PasswordHash,
		attrsJSON,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("IDENTITY_DUPLICATE_EMAIL").
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, attributes, created_at, updated_at
		FROM identities
		WHERE id = $1
	`, id.String())

	identity, err := r.scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_ID_FAILED").
			With("operation", "get identity by id").
			With("id", id.String()).
			Wrap(err)
	}
	return identity, nil
}

// GetByEmail retrieves an identity by email (case-insensitive).
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, attributes, created_at, updated_at
		FROM identities
		WHERE LOWER(email) = LOWER($1)
	`, email)

	identity, err := r.scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_BY_EMAIL_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	return identity, nil
}

// UpdateAttributes replaces the profile attributes for an identity and
// returns the updated record.
func (r *IdentityRepository) UpdateAttributes(ctx context.Context, id ulid.ULID, attributes map[string]string) (*auth.Identity, error) {
	attrsJSON, err := json.Marshal(attributes)
	if err != nil {
		return nil, oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "marshal attributes").
			Wrap(err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE identities SET attributes = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, email, password_hash, attributes, created_at, updated_at
	`, id.String(), attrsJSON, time.Now())

	identity, err := r.scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_UPDATE_FAILED").
			With("operation", "update attributes").
			With("id", id.String()).
			Wrap(err)
	}
	return identity, nil
}

// UpdatePassword updates only the password hash for an identity.
func (r *IdentityRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE identities SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanIdentity scans a single row into an Identity.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *IdentityRepository) scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr        string
		email        string
		passwordHash string
		attrsJSON    []byte
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&idStr, &email, &passwordHash, &attrsJSON, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").
			With("operation", "scan identity").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").
			With("operation", "parse identity id").
			With("id", idStr).
			Wrap(err)
	}

	attributes := map[string]string{}
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &attributes); err != nil {
			return nil, oops.Code("IDENTITY_INVALID_ATTRIBUTES").
				With("operation", "unmarshal attributes").
				Wrap(err)
		}
	}

	return &auth.Identity{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Attributes:   attributes,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
