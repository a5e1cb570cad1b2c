// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
)

func testReset(t *testing.T) *auth.PasswordReset {
	t.Helper()
	reset, err := auth.NewPasswordReset(ulid.Make(), "somehash", time.Now().Add(time.Hour))
	require.NoError(t, err)
	return reset
}

func TestPasswordResetRepository_Create(t *testing.T) {
	ctx := context.Background()

	mock := newMockPool(t)
	reset := testReset(t)

	mock.ExpectExec(`INSERT INTO password_resets`).
		WithArgs(reset.ID.String(), reset.IdentityID.String(), reset.TokenHash,
			reset.ExpiresAt, reset.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := postgres.NewPasswordResetRepository(mock)
	assert.NoError(t, repo.Create(ctx, reset))
}

func TestPasswordResetRepository_GetByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("returns reset", func(t *testing.T) {
		mock := newMockPool(t)
		reset := testReset(t)

		rows := pgxmock.NewRows([]string{"id", "identity_id", "token_hash", "expires_at", "created_at"}).
			AddRow(reset.ID.String(), reset.IdentityID.String(), reset.TokenHash,
				reset.ExpiresAt, reset.CreatedAt)

		mock.ExpectQuery(`SELECT id, identity_id, token_hash, expires_at, created_at`).
			WithArgs(reset.TokenHash).
			WillReturnRows(rows)

		repo := postgres.NewPasswordResetRepository(mock)
		got, err := repo.GetByTokenHash(ctx, reset.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, reset.IdentityID, got.IdentityID)
	})

	t.Run("unknown hash wraps ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectQuery(`SELECT id, identity_id, token_hash, expires_at, created_at`).
			WithArgs("nosuchhash").
			WillReturnRows(pgxmock.NewRows([]string{"id", "identity_id", "token_hash", "expires_at", "created_at"}))

		repo := postgres.NewPasswordResetRepository(mock)
		_, err := repo.GetByTokenHash(ctx, "nosuchhash")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestPasswordResetRepository_DeleteByIdentity(t *testing.T) {
	ctx := context.Background()
	identityID := ulid.Make()

	t.Run("deletes all for identity", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`DELETE FROM password_resets WHERE identity_id`).
			WithArgs(identityID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		repo := postgres.NewPasswordResetRepository(mock)
		assert.NoError(t, repo.DeleteByIdentity(ctx, identityID))
	})

	t.Run("no rows is a valid state", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`DELETE FROM password_resets WHERE identity_id`).
			WithArgs(identityID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		repo := postgres.NewPasswordResetRepository(mock)
		assert.NoError(t, repo.DeleteByIdentity(ctx, identityID))
	})
}

func TestPasswordResetRepository_DeleteExpired(t *testing.T) {
	ctx := context.Background()

	mock := newMockPool(t)
	mock.ExpectExec(`DELETE FROM password_resets WHERE expires_at`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	repo := postgres.NewPasswordResetRepository(mock)
	deleted, err := repo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
}
