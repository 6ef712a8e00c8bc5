package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xoarena/xoarena/internal/api"
	"github.com/xoarena/xoarena/internal/auth"
	"github.com/xoarena/xoarena/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// Connector opens the PostgreSQL pool.
	// Default: store.Connect
	Connector func(ctx context.Context, databaseURL string) (*pgxpool.Pool, error)

	// ObservabilityServerFactory creates the metrics/health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// APIServerFactory creates the public API server.
	// Default: api.NewServer
	APIServerFactory func(addr string, handlers *api.Handlers, codec *auth.Codec, metrics *observability.Metrics) APIServer
}

// APIServer interface wraps the methods used from api.Server.
type APIServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}
