// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

//go:build integration

package cli_test

import (
	"context"
	"os/exec"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
)

// runMigrate executes the xoarena binary's migrate subcommand against the
// suite database and returns its combined output.
func runMigrate(ctx context.Context, args ...string) (string, error) {
	cmdArgs := append([]string{"run", ".", "migrate"}, args...)
	cmd := exec.CommandContext(ctx, "go", cmdArgs...)
	cmd.Dir = "../../../cmd/xoarena"
	cmd.Env = append(cmd.Environ(), "DATABASE_URL="+env.connStr)

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// tablePresent reports whether a table exists in the suite database.
func tablePresent(ctx context.Context, name string) bool {
	var exists bool
	err := env.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, name).Scan(&exists)
	Expect(err).NotTo(HaveOccurred())
	return exists
}

var _ = Describe("Migrate Command", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetDatabase(ctx, env.pool)
	})

	Describe("Applying migrations", func() {
		It("applies the initial schema with 'migrate up'", func() {
			output, err := runMigrate(ctx, "up")
			Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)
			Expect(output).To(ContainSubstring("Applying 000001_init..."))
			Expect(output).To(ContainSubstring("Migrations completed successfully"))

			Expect(tablePresent(ctx, "players")).To(BeTrue())
			Expect(tablePresent(ctx, "challenges")).To(BeTrue())
		})

		It("reports nothing pending on a second run", func() {
			output, err := runMigrate(ctx, "up")
			Expect(err).NotTo(HaveOccurred(), "first migrate up failed: %s", output)

			output, err = runMigrate(ctx, "up")
			Expect(err).NotTo(HaveOccurred(), "second migrate up failed: %s", output)
			Expect(output).To(ContainSubstring("No pending migrations"))
		})

		It("applies a single step with 'migrate steps 1'", func() {
			output, err := runMigrate(ctx, "steps", "1")
			Expect(err).NotTo(HaveOccurred(), "migrate steps failed: %s", output)
			Expect(output).To(ContainSubstring("Applied 1 step(s)"))

			Expect(tablePresent(ctx, "players")).To(BeTrue())
		})
	})

	Describe("Inspecting state", func() {
		It("reports a fresh database as unmigrated", func() {
			output, err := runMigrate(ctx, "version")
			Expect(err).NotTo(HaveOccurred(), "migrate version failed: %s", output)
			Expect(output).To(ContainSubstring("No migrations applied"))
			Expect(output).To(ContainSubstring("Pending migrations: 1"))
		})

		It("reports the applied version by name", func() {
			output, err := runMigrate(ctx, "up")
			Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)

			output, err = runMigrate(ctx, "version")
			Expect(err).NotTo(HaveOccurred(), "migrate version failed: %s", output)
			Expect(output).To(ContainSubstring("Current version: 1 (000001_init)"))
			Expect(output).To(ContainSubstring("Pending migrations: 0"))
		})
	})

	Describe("Rolling back", func() {
		It("removes the schema with 'migrate down'", func() {
			output, err := runMigrate(ctx, "up")
			Expect(err).NotTo(HaveOccurred(), "migrate up failed: %s", output)

			output, err = runMigrate(ctx, "down")
			Expect(err).NotTo(HaveOccurred(), "migrate down failed: %s", output)
			Expect(output).To(ContainSubstring("Rollback completed"))

			Expect(tablePresent(ctx, "players")).To(BeFalse())
			Expect(tablePresent(ctx, "challenges")).To(BeFalse())
		})
	})

	Describe("Error handling", func() {
		It("fails without DATABASE_URL", func() {
			cmd := exec.CommandContext(ctx, "go", "run", ".", "migrate", "up")
			cmd.Dir = "../../../cmd/xoarena"
			// Override any inherited value with an explicit empty one
			cmd.Env = append(cmd.Environ(), "DATABASE_URL=")

			output, err := cmd.CombinedOutput()
			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("DATABASE_URL"))
		})
	})
})
