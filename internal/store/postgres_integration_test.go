// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

//go:build integration

package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xoarena/xoarena/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container for testing.
func setupPostgresContainer() (string, func(), error) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("xoarena_test"),
		postgres.WithUsername("xoarena"),
		postgres.WithPassword("xoarena"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", nil, err
	}

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return connStr, cleanup, nil
}

var _ = Describe("Store", func() {
	var connStr string
	var cleanup func()

	BeforeEach(func() {
		var err error
		connStr, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		cleanup()
	})

	Describe("Connect", func() {
		It("returns a pool that answers queries", func() {
			ctx := context.Background()
			pool, err := store.Connect(ctx, connStr)
			Expect(err).NotTo(HaveOccurred())
			defer pool.Close()

			var one int
			err = pool.QueryRow(ctx, "SELECT 1").Scan(&one)
			Expect(err).NotTo(HaveOccurred())
			Expect(one).To(Equal(1))
		})
	})

	Describe("Schema", func() {
		var pool *pgxpool.Pool

		BeforeEach(func() {
			ctx := context.Background()

			migrator, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			Expect(migrator.Up()).To(Succeed())
			Expect(migrator.Close()).To(Succeed())

			pool, err = store.Connect(ctx, connStr)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			pool.Close()
		})

		It("creates the players and challenges tables", func() {
			ctx := context.Background()

			for _, table := range []string{"players", "challenges"} {
				var exists bool
				err := pool.QueryRow(ctx,
					`SELECT EXISTS (
						SELECT 1 FROM information_schema.tables
						WHERE table_schema = 'public' AND table_name = $1
					)`, table).Scan(&exists)
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeTrue(), "table %s should exist", table)
			}
		})

		It("rejects usernames that collide case-insensitively", func() {
			ctx := context.Background()

			_, err := pool.Exec(ctx,
				`INSERT INTO players (id, username, password_hash) VALUES ($1, $2, $3)`,
				"p1", "Gamer", "hash")
			Expect(err).NotTo(HaveOccurred())

			_, err = pool.Exec(ctx,
				`INSERT INTO players (id, username, password_hash) VALUES ($1, $2, $3)`,
				"p2", "GAMER", "hash")
			Expect(err).To(HaveOccurred())

			var pgErr *pgconn.PgError
			Expect(errors.As(err, &pgErr)).To(BeTrue())
			Expect(pgErr.Code).To(Equal("23505"), "should be a unique violation")
		})

		It("defaults created_at and updated_at on players", func() {
			ctx := context.Background()

			_, err := pool.Exec(ctx,
				`INSERT INTO players (id, username, password_hash) VALUES ($1, $2, $3)`,
				"p1", "gamer", "hash")
			Expect(err).NotTo(HaveOccurred())

			var createdAt, updatedAt time.Time
			err = pool.QueryRow(ctx,
				`SELECT created_at, updated_at FROM players WHERE id = $1`, "p1").
				Scan(&createdAt, &updatedAt)
			Expect(err).NotTo(HaveOccurred())
			Expect(createdAt).To(BeTemporally("~", time.Now(), time.Minute))
			Expect(updatedAt).To(BeTemporally("~", time.Now(), time.Minute))
		})
	})
})
