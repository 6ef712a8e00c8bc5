// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package store

import (
	"embed"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// Register the pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// The manifest maps migration versions to their NNNNNN_name stems. It is
// parsed from the embedded FS once; the FS cannot change at runtime.
var (
	manifestOnce sync.Once
	manifest     map[uint]string
	manifestErr  error
)

// migrateIface abstracts golang-migrate so Migrator behavior can be unit
// tested without a live database.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies and rolls back the embedded schema migrations.
type Migrator struct {
	m migrateIface
}

// NewMigrator creates a Migrator for the given connection string. It does not
// dial until the first operation runs.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("operation", "create migration source").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateScheme(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return &Migrator{m: m}, nil
}

// migrateScheme rewrites postgres:// and postgresql:// URLs to the pgx5://
// scheme golang-migrate's pgx/v5 driver registers under. Other schemes pass
// through untouched.
func migrateScheme(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, prefix); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// Up applies all pending migrations. Already being at the latest version is
// not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Down rolls back every applied migration, dropping all tables and their
// data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
	}
	return nil
}

// Steps applies n migrations. Positive n migrates up, negative n rolls back.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_STEPS_FAILED").With("steps", n).Wrap(err)
	}
	return nil
}

// Version returns the current migration version and dirty state. A fresh
// database with no applied migrations reports version 0, not an error. Dirty
// means a migration failed partway and needs manual repair before anything
// else can run.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force sets the recorded migration version without running any migrations.
// It exists to recover from a dirty state after repairing the database by
// hand; a wrong version makes later runs skip or re-apply migrations.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the migration source and the database connection. When both
// fail, the error reports both so neither is lost.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations returns the versions Up would apply, ascending.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	all, err := allMigrationVersions()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	var pending []uint
	for _, v := range all {
		if v > current {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// AppliedMigrations returns the versions already applied, ascending.
func (m *Migrator) AppliedMigrations() ([]uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}
	if current == 0 {
		return nil, nil
	}

	all, err := allMigrationVersions()
	if err != nil {
		return nil, oops.With("operation", "get applied migrations").Wrap(err)
	}

	var applied []uint
	for _, v := range all {
		if v <= current {
			applied = append(applied, v)
		}
	}
	return applied, nil
}

// MigrationName returns the NNNNNN_name stem for a version, for example
// "000001_init". Unknown versions return "" without an error: the CLI looks
// up names for whatever version the database happens to report, including
// manually forced ones.
func MigrationName(version uint) (string, error) {
	m, err := loadManifest()
	if err != nil {
		return "", err
	}
	return m[version], nil
}

// allMigrationVersions returns every migration version in the embedded FS in
// ascending order. The returned slice is freshly built; callers may mutate it.
func allMigrationVersions() ([]uint, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, err
	}

	versions := make([]uint, 0, len(m))
	for v := range m {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// loadManifest parses the embedded migrations directory into the cached
// version-to-name map. Files that do not follow the NNNNNN_name.up.sql
// pattern are logged and skipped rather than failing the whole lookup;
// TestMigrationsFS_EmbeddedFiles keeps the directory honest at test time.
func loadManifest() (map[uint]string, error) {
	manifestOnce.Do(func() {
		entries, err := migrationsFS.ReadDir("migrations")
		if err != nil {
			manifestErr = oops.Code("MIGRATION_LIST_FAILED").With("operation", "read migrations dir").Wrap(err)
			return
		}

		m := make(map[uint]string, len(entries)/2)
		for _, entry := range entries {
			stem, found := strings.CutSuffix(entry.Name(), ".up.sql")
			if !found {
				continue
			}
			idx := strings.IndexByte(stem, '_')
			if idx < 0 {
				slog.Warn("skipping migration with unparseable filename",
					"filename", entry.Name(),
					"expected_format", "NNNNNN_name.up.sql")
				continue
			}
			version, err := strconv.ParseUint(stem[:idx], 10, 32)
			if err != nil {
				slog.Warn("skipping migration with unparseable filename",
					"filename", entry.Name(),
					"expected_format", "NNNNNN_name.up.sql",
					"error", err)
				continue
			}
			m[uint(version)] = stem
		}
		manifest = m
	})
	return manifest, manifestErr
}
