// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
)

func testSession(t *testing.T) *auth.Session {
	t.Helper()
	session, err := auth.NewSession(ulid.Make(), auth.HashSessionToken("sometoken"), time.Now().Add(time.Hour))
	require.NoError(t, err)
	return session
}

func sessionRows(session *auth.Session) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "identity_id", "token_hash", "revoked", "issued_at", "expires_at"}).
		AddRow(session.ID.String(), session.IdentityID.String(), session.TokenHash,
			session.Revoked, session.IssuedAt, session.ExpiresAt)
}

func TestSessionRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts session", func(t *testing.T) {
		mock := newMockPool(t)
		session := testSession(t)

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID.String(), session.IdentityID.String(), session.TokenHash,
				session.Revoked, session.IssuedAt, session.ExpiresAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := postgres.NewSessionRepository(mock)
		require.NoError(t, repo.Create(ctx, session))
	})

	t.Run("wraps insert failure", func(t *testing.T) {
		mock := newMockPool(t)
		session := testSession(t)

		mock.ExpectExec(`INSERT INTO sessions`).
			WithArgs(session.ID.String(), session.IdentityID.String(), session.TokenHash,
				session.Revoked, session.IssuedAt, session.ExpiresAt).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewSessionRepository(mock)
		err := repo.Create(ctx, session)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns session", func(t *testing.T) {
		mock := newMockPool(t)
		session := testSession(t)

		mock.ExpectQuery(`SELECT id, identity_id, token_hash, revoked, issued_at, expires_at`).
			WithArgs(session.TokenHash).
			WillReturnRows(sessionRows(session))

		repo := postgres.NewSessionRepository(mock)
		got, err := repo.GetByTokenHash(ctx, session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
		assert.Equal(t, session.IdentityID, got.IdentityID)
	})

	t.Run("unknown hash wraps ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectQuery(`SELECT id, identity_id, token_hash, revoked, issued_at, expires_at`).
			WithArgs("nosuchhash").
			WillReturnRows(pgxmock.NewRows([]string{"id", "identity_id", "token_hash", "revoked", "issued_at", "expires_at"}))

		repo := postgres.NewSessionRepository(mock)
		_, err := repo.GetByTokenHash(ctx, "nosuchhash")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestSessionRepository_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("revokes by token hash", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`UPDATE sessions SET revoked = TRUE`).
			WithArgs("somehash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewSessionRepository(mock)
		require.NoError(t, repo.Revoke(ctx, "somehash"))
	})

	t.Run("unknown hash is a no-op", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`UPDATE sessions SET revoked = TRUE`).
			WithArgs("nosuchhash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewSessionRepository(mock)
		assert.NoError(t, repo.Revoke(ctx, "nosuchhash"))
	})
}

func TestSessionRepository_RevokeAllForIdentity(t *testing.T) {
	ctx := context.Background()
	identityID := ulid.Make()

	mock := newMockPool(t)
	mock.ExpectExec(`UPDATE sessions SET revoked = TRUE`).
		WithArgs(identityID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	repo := postgres.NewSessionRepository(mock)
	assert.NoError(t, repo.RevokeAllForIdentity(ctx, identityID))
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("returns deleted count", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 5))

		repo := postgres.NewSessionRepository(mock)
		deleted, err := repo.DeleteExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)
	})

	t.Run("wraps delete failure", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`DELETE FROM sessions WHERE expires_at`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewSessionRepository(mock)
		_, err := repo.DeleteExpired(ctx)
		assert.Error(t, err)
	})
}
