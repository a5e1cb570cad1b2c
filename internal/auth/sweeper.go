// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// DefaultSweepInterval is how often expired rows are reclaimed.
const DefaultSweepInterval = 10 * time.Minute

// Sweeper periodically deletes expired sessions and reset tokens.
// Validation never trusts the sweep: a token expiring between sweeps is
// rejected by Issuer.Validate, so the sweeper only reclaims storage.
type Sweeper struct {
	sessions SessionRepository
	resets   PasswordResetRepository
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a Sweeper. The resets repository is optional; pass nil
// to sweep sessions only. A non-positive interval falls back to the default.
func NewSweeper(sessions SessionRepository, resets PasswordResetRepository, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Errorf("sessions repository is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		sessions: sessions,
		resets:   resets,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the background sweep loop. Call Stop to terminate it.
func (s *Sweeper) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop terminates the sweep loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single reclamation pass. Failures are logged, not
// returned: the next tick retries, and validation is unaffected either way.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	deleted, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "session sweep failed", "error", err)
	} else if deleted > 0 {
		RecordSweptSessions(deleted)
		s.logger.DebugContext(ctx, "swept expired sessions", "count", deleted)
	}

	if s.resets == nil {
		return
	}
	deleted, err = s.resets.DeleteExpired(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "reset token sweep failed", "error", err)
	} else if deleted > 0 {
		s.logger.DebugContext(ctx, "swept expired reset tokens", "count", deleted)
	}
}
