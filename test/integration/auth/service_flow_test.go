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

var _ = Describe("Service", func() {
	var svc *auth.Service

	BeforeEach(func() {
		env.truncate()

		issuer, err := auth.NewIssuer(env.Sessions, time.Hour)
		Expect(err).NotTo(HaveOccurred())

		// Low argon2 costs keep the suite fast; production costs come
		// from config.
		hasher := auth.NewArgon2idHasher(auth.HasherParams{Time: 1, Memory: 8 * 1024, Threads: 1})

		svc, err = auth.NewService(env.Identities, issuer, hasher, auth.PermittedFields{
			SignUp:        auth.NewPermittedFieldSet("name"),
			ProfileUpdate: auth.NewPermittedFieldSet("name", "avatar_url"),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("signs up, signs in, and resolves the current identity", func() {
		_, _, err := svc.SignUp(env.ctx, "flow@example.com", "correct horse battery", map[string]string{"name": "Flow"})
		Expect(err).NotTo(HaveOccurred())

		_, token, err := svc.SignIn(env.ctx, "flow@example.com", "correct horse battery")
		Expect(err).NotTo(HaveOccurred())

		identity, err := svc.CurrentIdentity(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())
		Expect(identity.Email).To(Equal("flow@example.com"))
		Expect(identity.Attributes).To(HaveKeyWithValue("name", "Flow"))
	})

	It("rejects a second sign-up with the same email in any case", func() {
		_, _, err := svc.SignUp(env.ctx, "dupe@example.com", "password one", nil)
		Expect(err).NotTo(HaveOccurred())

		_, _, err = svc.SignUp(env.ctx, "DUPE@Example.Com", "password two", nil)
		Expect(err).To(MatchError(auth.ErrDuplicateEmail))
	})

	It("revokes every session on password change and accepts the new password", func() {
		_, firstToken, err := svc.SignUp(env.ctx, "rotate@example.com", "old password here", nil)
		Expect(err).NotTo(HaveOccurred())
		_, secondToken, err := svc.SignIn(env.ctx, "rotate@example.com", "old password here")
		Expect(err).NotTo(HaveOccurred())

		identity, err := svc.CurrentIdentity(env.ctx, firstToken)
		Expect(err).NotTo(HaveOccurred())

		Expect(svc.ChangePassword(env.ctx, identity.ID, "new password here")).To(Succeed())

		for _, token := range []string{firstToken, secondToken} {
			_, err := svc.CurrentIdentity(env.ctx, token)
			Expect(err).To(HaveOccurred())
		}

		_, _, err = svc.SignIn(env.ctx, "rotate@example.com", "old password here")
		Expect(err).To(HaveOccurred())
		_, _, err = svc.SignIn(env.ctx, "rotate@example.com", "new password here")
		Expect(err).NotTo(HaveOccurred())
	})

	It("never changes email through profile updates", func() {
		_, token, err := svc.SignUp(env.ctx, "stable@example.com", "some password", nil)
		Expect(err).NotTo(HaveOccurred())
		identity, err := svc.CurrentIdentity(env.ctx, token)
		Expect(err).NotTo(HaveOccurred())

		updated, err := svc.UpdateProfile(env.ctx, identity.ID, map[string]string{
			"email":      "hijack@example.com",
			"avatar_url": "https://example.com/a.png",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Email).To(Equal("stable@example.com"))
		Expect(updated.Attributes).To(HaveKeyWithValue("avatar_url", "https://example.com/a.png"))
		Expect(updated.Attributes).NotTo(HaveKey("email"))
	})
})
