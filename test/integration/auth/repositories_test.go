// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package auth_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatehouse/gatehouse/internal/auth"
)

var _ = Describe("IdentityRepository", func() {
	BeforeEach(func() {
		env.truncate()
	})

	It("creates and retrieves an identity by ID", func() {
		identity := mustIdentity("alice@example.com")
		Expect(env.Identities.Create(env.ctx, identity)).To(Succeed())

		got, err := env.Identities.GetByID(env.ctx, identity.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Email).To(Equal("alice@example.com"))
		Expect(got.PasswordHash).To(Equal(identity.PasswordHash))
		Expect(got.Attributes).To(HaveKeyWithValue("name", "Test"))
	})

	It("retrieves an identity by email regardless of case", func() {
		identity := mustIdentity("bob@example.com")
		Expect(env.Identities.Create(env.ctx, identity)).To(Succeed())

		got, err := env.Identities.GetByEmail(env.ctx, "BOB@Example.COM")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(identity.ID))
	})

	It("rejects a duplicate email that differs only in case", func() {
		Expect(env.Identities.Create(env.ctx, mustIdentity("carol@example.com"))).To(Succeed())

		dup, err := auth.NewIdentity("Carol@Example.Com", "$argon2id$v=19$m=65536,t=1,p=4$salt$hash", nil)
		Expect(err).NotTo(HaveOccurred())
		err = env.Identities.Create(env.ctx, dup)
		Expect(err).To(MatchError(auth.ErrDuplicateEmail))

		// Exactly one record survives.
		var count int
		Expect(env.pool.QueryRow(env.ctx,
			`SELECT COUNT(*) FROM identities WHERE LOWER(email) = 'carol@example.com'`,
		).Scan(&count)).To(Succeed())
		Expect(count).To(Equal(1))
	})

	It("returns ErrNotFound for an unknown email", func() {
		_, err := env.Identities.GetByEmail(env.ctx, "nobody@example.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("replaces attributes without touching email or password", func() {
		identity := mustIdentity("dave@example.com")
		Expect(env.Identities.Create(env.ctx, identity)).To(Succeed())

		updated, err := env.Identities.UpdateAttributes(env.ctx, identity.ID, map[string]string{
			"name":       "Dave",
			"avatar_url": "https://example.com/dave.png",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Email).To(Equal("dave@example.com"))
		Expect(updated.PasswordHash).To(Equal(identity.PasswordHash))
		Expect(updated.Attributes).To(HaveKeyWithValue("avatar_url", "https://example.com/dave.png"))
		Expect(updated.UpdatedAt).To(BeTemporally(">=", identity.UpdatedAt))
	})

	It("updates the password hash in place", func() {
		identity := mustIdentity("erin@example.com")
		Expect(env.Identities.Create(env.ctx, identity)).To(Succeed())

		newHash := "$argon2id$v=19$m=65536,t=1,p=4$salt$rehash"
		Expect(env.Identities.UpdatePassword(env.ctx, identity.ID, newHash)).To(Succeed())

		got, err := env.Identities.GetByID(env.ctx, identity.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.PasswordHash).To(Equal(newHash))
	})

	It("reports ErrNotFound when updating an unknown identity", func() {
		missing := mustIdentity("ghost@example.com")
		Expect(env.Identities.UpdatePassword(env.ctx, missing.ID, "hash")).To(MatchError(auth.ErrNotFound))
		_, err := env.Identities.UpdateAttributes(env.ctx, missing.ID, map[string]string{})
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("SessionRepository", func() {
	var identity *auth.Identity

	BeforeEach(func() {
		env.truncate()
		identity = mustIdentity("session-owner@example.com")
		Expect(env.Identities.Create(env.ctx, identity)).To(Succeed())
	})

	newSession := func(expiresAt time.Time) *auth.Session {
		_, hash, err := auth.GenerateSessionToken()
		Expect(err).NotTo(HaveOccurred())
		session, err := auth.NewSession(identity.ID, hash, expiresAt)
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Sessions.Create(env.ctx, session)).To(Succeed())
		return session
	}

	It("stores and retrieves a session by token hash", func() {
		session := newSession(time.Now().Add(time.Hour))

		got, err := env.Sessions.GetByTokenHash(env.ctx, session.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.IdentityID).To(Equal(identity.ID))
		Expect(got.Revoked).To(BeFalse())
	})

	It("revokes a single session by token hash", func() {
		session := newSession(time.Now().Add(time.Hour))
		other := newSession(time.Now().Add(time.Hour))

		Expect(env.Sessions.Revoke(env.ctx, session.TokenHash)).To(Succeed())

		got, err := env.Sessions.GetByTokenHash(env.ctx, session.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Revoked).To(BeTrue())

		untouched, err := env.Sessions.GetByTokenHash(env.ctx, other.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(untouched.Revoked).To(BeFalse())
	})

	It("revokes every session for an identity", func() {
		first := newSession(time.Now().Add(time.Hour))
		second := newSession(time.Now().Add(time.Hour))

		Expect(env.Sessions.RevokeAllForIdentity(env.ctx, identity.ID)).To(Succeed())

		for _, hash := range []string{first.TokenHash, second.TokenHash} {
			got, err := env.Sessions.GetByTokenHash(env.ctx, hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Revoked).To(BeTrue())
		}
	})

	It("deletes only expired sessions", func() {
		expired := newSession(time.Now().Add(time.Hour))
		live := newSession(time.Now().Add(time.Hour))

		// Backdate one session past its expiry.
		_, err := env.pool.Exec(env.ctx,
			`UPDATE sessions SET expires_at = NOW() - INTERVAL '1 minute' WHERE token_hash = $1`,
			expired.TokenHash)
		Expect(err).NotTo(HaveOccurred())

		deleted, err := env.Sessions.DeleteExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(Equal(int64(1)))

		_, err = env.Sessions.GetByTokenHash(env.ctx, expired.TokenHash)
		Expect(err).To(MatchError(auth.ErrNotFound))
		_, err = env.Sessions.GetByTokenHash(env.ctx, live.TokenHash)
		Expect(err).NotTo(HaveOccurred())
	})

	It("cascades session deletion when the identity is removed", func() {
		session := newSession(time.Now().Add(time.Hour))

		_, err := env.pool.Exec(env.ctx, `DELETE FROM identities WHERE id = $1`, identity.ID.String())
		Expect(err).NotTo(HaveOccurred())

		_, err = env.Sessions.GetByTokenHash(env.ctx, session.TokenHash)
		Expect(err).To(MatchError(auth.ErrNotFound))
	})
})

var _ = Describe("PasswordResetRepository", func() {
	var identity *auth.Identity

	BeforeEach(func() {
		env.truncate()
		identity = mustIdentity("reset-owner@example.com")
		Expect(env.Identities.Create(env.ctx, identity)).To(Succeed())
	})

	newReset := func() *auth.PasswordReset {
		_, hash, err := auth.GenerateResetToken()
		Expect(err).NotTo(HaveOccurred())
		reset, err := auth.NewPasswordReset(identity.ID, hash, time.Now().Add(15*time.Minute))
		Expect(err).NotTo(HaveOccurred())
		Expect(env.Resets.Create(env.ctx, reset)).To(Succeed())
		return reset
	}

	It("stores and retrieves a reset by token hash", func() {
		reset := newReset()

		got, err := env.Resets.GetByTokenHash(env.ctx, reset.TokenHash)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.IdentityID).To(Equal(identity.ID))
	})

	It("returns ErrNotFound for an unknown token hash", func() {
		_, err := env.Resets.GetByTokenHash(env.ctx, "missing")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("deletes all resets for an identity", func() {
		first := newReset()
		second := newReset()

		Expect(env.Resets.DeleteByIdentity(env.ctx, identity.ID)).To(Succeed())

		for _, hash := range []string{first.TokenHash, second.TokenHash} {
			_, err := env.Resets.GetByTokenHash(env.ctx, hash)
			Expect(err).To(MatchError(auth.ErrNotFound))
		}
	})

	It("deletes only expired resets", func() {
		stale := newReset()
		fresh := newReset()

		_, err := env.pool.Exec(env.ctx,
			`UPDATE password_resets SET expires_at = NOW() - INTERVAL '1 minute' WHERE token_hash = $1`,
			stale.TokenHash)
		Expect(err).NotTo(HaveOccurred())

		deleted, err := env.Resets.DeleteExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(Equal(int64(1)))

		_, err = env.Resets.GetByTokenHash(env.ctx, fresh.TokenHash)
		Expect(err).NotTo(HaveOccurred())
	})
})
