// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for sign-up and sign-in metrics.
const (
	StatusSuccess            = "success"
	StatusDuplicateEmail     = "duplicate_email"
	StatusValidationError    = "validation_error"
	StatusInvalidCredentials = "invalid_credentials"
	StatusError              = "error"
)

// Outcome constants for session validation metrics.
const (
	ValidationOK      = "ok"
	ValidationInvalid = "invalid"
	ValidationExpired = "expired"
	ValidationRevoked = "revoked"
)

// SignUps is the counter for sign-up attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var SignUps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_signups_total",
		Help: "Total number of sign-up attempts by status",
	},
	[]string{"status"},
)

// SignIns is the counter for sign-in attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var SignIns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_signins_total",
		Help: "Total number of sign-in attempts by status",
	},
	[]string{"status"},
)

// SessionValidations is the counter for session token validations.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionValidations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_session_validations_total",
		Help: "Total number of session token validations by outcome",
	},
	[]string{"outcome"},
)

// SweptSessions is the counter for expired sessions reclaimed by the sweeper.
// Use RegisterMetrics to register this with a Prometheus registry.
var SweptSessions = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "gatehouse_swept_sessions_total",
		Help: "Total number of expired sessions removed by the sweeper",
	},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// This must be called at startup to make metrics available on /metrics.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SignUps)
	reg.MustRegister(SignIns)
	reg.MustRegister(SessionValidations)
	reg.MustRegister(SweptSessions)
}

// RecordSignUp increments the sign-up counter with the given status.
func RecordSignUp(status string) {
	SignUps.WithLabelValues(status).Inc()
}

// RecordSignIn increments the sign-in counter with the given status.
func RecordSignIn(status string) {
	SignIns.WithLabelValues(status).Inc()
}

// RecordSessionValidation increments the validation counter with the given outcome.
func RecordSessionValidation(outcome string) {
	SessionValidations.WithLabelValues(outcome).Inc()
}

// RecordSweptSessions adds the number of sessions removed in a sweep.
func RecordSweptSessions(count int64) {
	if count > 0 {
		SweptSessions.Add(float64(count))
	}
}
