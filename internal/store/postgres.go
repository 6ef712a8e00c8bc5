// Package store provides PostgreSQL connectivity and schema management.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	connectRetryBase = 500 * time.Millisecond
	connectRetryCap  = 5 * time.Second
	connectRetries   = 5
)

// Connect opens a pgx connection pool and verifies it with a ping.
// Transient ping failures are retried with capped exponential backoff so a
// database that is still starting up does not fail the boot sequence.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "create pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectRetries,
		retry.WithCappedDuration(connectRetryCap,
			retry.NewExponential(connectRetryBase)))

	if err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
