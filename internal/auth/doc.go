// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides the credential authentication core for Gatehouse.
//
// # Domain Types
//
// Domain types (Identity, Session, PasswordReset) should be created
// using their respective constructors:
//   - NewIdentity - creates an Identity with a normalized, validated email
//   - NewSession - creates a Session with validated identity and expiry
//   - NewPasswordReset - creates a PasswordReset with validated identity and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - sign-up, sign-in, sign-out, profile and password management
//   - Issuer - session token issuance, validation, and revocation
//   - PasswordResetService - password reset flow
//   - Sweeper - background reclamation of expired sessions and reset tokens
//
// Services are created with New* constructors that validate dependencies.
package auth
