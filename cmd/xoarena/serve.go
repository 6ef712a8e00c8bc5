// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/xoarena/xoarena/internal/api"
	"github.com/xoarena/xoarena/internal/auth"
	authpg "github.com/xoarena/xoarena/internal/auth/postgres"
	authredis "github.com/xoarena/xoarena/internal/auth/redis"
	"github.com/xoarena/xoarena/internal/captcha"
	"github.com/xoarena/xoarena/internal/config"
	"github.com/xoarena/xoarena/internal/logging"
	"github.com/xoarena/xoarena/internal/observability"
	"github.com/xoarena/xoarena/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the authentication API server which issues captcha
challenges, registers and signs in accounts, and mints signed
access/refresh token pairs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	cmd.Flags().String("listen", config.DefaultListen, "API listen address")
	cmd.Flags().String("metrics-listen", config.DefaultMetricsListen, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
	cmd.Flags().Duration("access-ttl", config.DefaultAccessTTL, "access token lifetime")
	cmd.Flags().Duration("refresh-ttl", config.DefaultRefreshTTL, "refresh token lifetime")
	cmd.Flags().String("log-format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().Bool("redis-enabled", false, "store captcha challenges in Redis instead of PostgreSQL")
	cmd.Flags().String("redis-addr", "", "Redis address (host:port)")

	return cmd
}

// runServeWithDeps starts the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.Connector == nil {
		deps.Connector = store.Connect
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.APIServerFactory == nil {
		deps.APIServerFactory = func(addr string, handlers *api.Handlers, codec *auth.Codec, metrics *observability.Metrics) APIServer {
			return api.NewServer(addr, handlers, codec, metrics, slog.Default())
		}
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.SetDefault("xoarena", version, cfg.LogFormat)

	slog.Info("starting server",
		"listen", cfg.Listen,
		"log_format", cfg.LogFormat,
	)

	pool, err := deps.Connector(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	slog.Info("connected to database")

	players := authpg.NewPlayerRepository(pool)

	// Captcha challenges can live in Redis, which expires them natively,
	// or in PostgreSQL next to the players.
	var challenges auth.ChallengeRepository
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				slog.Debug("error closing redis client", "error", closeErr)
			}
		}()
		challenges = authredis.NewChallengeRepository(client)
		slog.Info("challenge store ready", "backend", "redis", "addr", cfg.Redis.Addr)
	} else {
		challenges = authpg.NewChallengeRepository(pool)
		slog.Info("challenge store ready", "backend", "postgres")
	}

	codec, err := auth.NewCodec([]byte(cfg.SecretKey))
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}
	issuer, err := auth.NewIssuer(codec, players, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	hasher := auth.NewArgon2idHasher()
	challengeService := auth.NewChallengeService(challenges, captcha.NewGenerator())
	accountService := auth.NewAccountService(
		players,
		hasher,
		challengeService,
		auth.NewCredentialVerifier(players, hasher),
		issuer,
	)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.MetricsListen != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsListen, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	} else {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	handlers := api.NewHandlers(challengeService, accountService, issuer, metrics, slog.Default())
	apiServer := deps.APIServerFactory(cfg.Listen, handlers, codec, metrics)

	apiErrChan, err := apiServer.Start()
	if err != nil {
		stopObservability(obsServer)
		return fmt.Errorf("failed to start api server: %w", err)
	}
	// Monitor api server errors - cancel context on error
	go monitorServerErrors(ctx, cancel, apiErrChan, "api")

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Server started")
	slog.Info("server ready", "addr", apiServer.Addr())

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// stopObservability stops the observability server during startup cleanup.
func stopObservability(obsServer ObservabilityServer) {
	if obsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop observability server during cleanup", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// This ensures that server failures trigger graceful shutdown of the entire process.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
