// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestGenerateSessionToken(t *testing.T) {
	t.Run("generates secure token", func(t *testing.T) {
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		assert.Len(t, token, auth.SessionTokenHexLen)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, token, hash)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, hash1, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		token2, hash2, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		assert.NotEqual(t, token1, token2)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("hash is SHA256 hex-encoded", func(t *testing.T) {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)
		// SHA256 produces 32 bytes = 64 hex chars
		assert.Len(t, hash, 64)
	})
}

func TestHashSessionToken(t *testing.T) {
	t.Run("produces consistent hash", func(t *testing.T) {
		token := "testtoken123"
		hash1 := auth.HashSessionToken(token)
		hash2 := auth.HashSessionToken(token)
		assert.Equal(t, hash1, hash2)
	})

	t.Run("produces different hashes for different tokens", func(t *testing.T) {
		hash1 := auth.HashSessionToken("token1")
		hash2 := auth.HashSessionToken("token2")
		assert.NotEqual(t, hash1, hash2)
	})
}

func TestVerifySessionToken(t *testing.T) {
	t.Run("matching token verifies", func(t *testing.T) {
		token, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		ok, err := auth.VerifySessionToken(token, hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wrong token fails", func(t *testing.T) {
		_, hash, err := auth.GenerateSessionToken()
		require.NoError(t, err)

		ok, err := auth.VerifySessionToken("wrongtoken", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty token returns error", func(t *testing.T) {
		_, err := auth.VerifySessionToken("", "somehash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_TOKEN_EMPTY")
	})

	t.Run("empty hash returns error", func(t *testing.T) {
		_, err := auth.VerifySessionToken("sometoken", "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_HASH_EMPTY")
	})
}

func TestNewSession(t *testing.T) {
	identityID := ulid.Make()

	t.Run("creates valid session", func(t *testing.T) {
		expiresAt := time.Now().Add(auth.DefaultSessionTTL)
		session, err := auth.NewSession(identityID, "somehash", expiresAt)
		require.NoError(t, err)
		assert.Equal(t, identityID, session.IdentityID)
		assert.Equal(t, "somehash", session.TokenHash)
		assert.False(t, session.Revoked)
		assert.Equal(t, expiresAt, session.ExpiresAt)
	})

	t.Run("rejects zero identity ID", func(t *testing.T) {
		_, err := auth.NewSession(ulid.ULID{}, "somehash", time.Now().Add(time.Hour))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_IDENTITY")
	})

	t.Run("rejects empty token hash", func(t *testing.T) {
		_, err := auth.NewSession(identityID, "", time.Now().Add(time.Hour))
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_HASH")
	})

	t.Run("rejects zero expiry", func(t *testing.T) {
		_, err := auth.NewSession(identityID, "somehash", time.Time{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_EXPIRY")
	})
}

func TestSession_IsExpired(t *testing.T) {
	identityID := ulid.Make()

	t.Run("not expired when ExpiresAt is in future", func(t *testing.T) {
		session := &auth.Session{
			ID:         ulid.Make(),
			IdentityID: identityID,
			TokenHash:  "somehash",
			IssuedAt:   time.Now(),
			ExpiresAt:  time.Now().Add(time.Hour),
		}
		assert.False(t, session.IsExpired())
	})

	t.Run("expired when ExpiresAt is in past", func(t *testing.T) {
		session := &auth.Session{
			ID:         ulid.Make(),
			IdentityID: identityID,
			TokenHash:  "somehash",
			IssuedAt:   time.Now().Add(-2 * time.Hour),
			ExpiresAt:  time.Now().Add(-time.Hour),
		}
		assert.True(t, session.IsExpired())
	})

	t.Run("IsExpiredAt uses the provided clock", func(t *testing.T) {
		now := time.Now()
		session := &auth.Session{
			ID:         ulid.Make(),
			IdentityID: identityID,
			TokenHash:  "somehash",
			IssuedAt:   now,
			ExpiresAt:  now.Add(time.Hour),
		}
		assert.False(t, session.IsExpiredAt(now.Add(time.Hour)))
		assert.True(t, session.IsExpiredAt(now.Add(time.Hour+time.Nanosecond)))
	})
}
