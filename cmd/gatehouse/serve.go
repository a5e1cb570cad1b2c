// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/httpapi"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/internal/store"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication service",
		Long: `Start the Gatehouse HTTP API and observability servers,
connect to PostgreSQL, and begin sweeping expired sessions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file path")

	// Flag names mirror config keys so posflag can overlay them.
	cmd.Flags().String("listen.api", "", "API listen address")
	cmd.Flags().String("listen.metrics", "", "metrics/health HTTP address")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")

	return cmd
}

// runServe wires up the service and blocks until shutdown.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("gatehouse", version, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	logger := slog.Default()

	logger.Info("starting gatehouse",
		"api_addr", cfg.Listen.API,
		"metrics_addr", cfg.Listen.Metrics,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	identities := postgres.NewIdentityRepository(pool)
	sessions := postgres.NewSessionRepository(pool)
	resets := postgres.NewPasswordResetRepository(pool)

	var hasher auth.PasswordHasher = auth.NewArgon2idHasher(cfg.HasherParams())
	hasher, err = auth.NewPoolHasher(hasher, cfg.Auth.HashPoolSize)
	if err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(sessions, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}

	permitted := auth.PermittedFields{
		SignUp:        auth.NewPermittedFieldSet(cfg.Auth.SignUpFields...),
		ProfileUpdate: auth.NewPermittedFieldSet(cfg.Auth.ProfileFields...),
	}

	svc, err := auth.NewServiceWithLogger(identities, issuer, hasher, permitted, logger)
	if err != nil {
		return err
	}

	resetSvc, err := auth.NewPasswordResetServiceWithLogger(identities, resets, issuer, hasher, cfg.Auth.ResetTTL, logger)
	if err != nil {
		return err
	}

	sweeper, err := auth.NewSweeper(sessions, resets, cfg.Auth.SweepInterval, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Observability server comes up before the API so probes and metrics
	// are available while the API binds.
	obsServer := observability.NewServer(cfg.Listen.Metrics, func() bool {
		return pool.Ping(ctx) == nil
	})
	obsErrCh, err := obsServer.Start()
	if err != nil {
		return oops.With("operation", "start observability server").Wrap(err)
	}

	api, err := httpapi.NewAPI(svc, resetSvc, httpapi.APIOptions{
		CookieName: cfg.Auth.CookieName,
		SessionTTL: cfg.Auth.SessionTTL,
		Logger:     logger,
		Recorder:   obsServer.Metrics(),
	})
	if err != nil {
		return err
	}

	registry := httpapi.NewRegistry()
	api.Register(registry)
	applyExemptions(registry, cfg.Auth.ExemptRoutes, logger)

	authn := httpapi.NewAuthenticator(svc, cfg.Auth.CookieName, logger)
	handler := registry.Handler(authn.Middleware)

	apiServer, err := httpapi.NewServer(cfg.Listen.API, handler, logger)
	if err != nil {
		return err
	}
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		_ = obsServer.Stop(stopCtx)
		return oops.With("operation", "start api server").Wrap(err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cmd.Println("Gatehouse started")
	logger.Info("gatehouse ready", "api_addr", apiServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case serveErr := <-apiErrCh:
		if serveErr != nil {
			logger.Error("api server failed", "error", serveErr)
		}
	case serveErr := <-obsErrCh:
		if serveErr != nil {
			logger.Error("observability server failed", "error", serveErr)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if err := obsServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// applyExemptions marks configured "METHOD /path" routes as exempt from
// authentication. Unknown routes are logged and skipped.
func applyExemptions(registry *httpapi.Registry, routes []string, logger *slog.Logger) {
	for _, entry := range routes {
		method, path, ok := strings.Cut(strings.TrimSpace(entry), " ")
		if !ok {
			logger.Warn("ignoring malformed exempt route", "route", entry)
			continue
		}
		if !registry.SetExempt(method, strings.TrimSpace(path), true) {
			logger.Warn("ignoring exempt route with no matching endpoint", "route", entry)
		}
	}
}
