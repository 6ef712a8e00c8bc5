// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package postgres provides PostgreSQL-backed auth repositories.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/internal/auth"
)

// poolIface abstracts pgxpool.Pool so repositories can be unit tested
// against pgxmock.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PlayerRepository implements auth.PlayerRepository using PostgreSQL.
type PlayerRepository struct {
	pool poolIface
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(pool poolIface) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// Create stores a new player. Username uniqueness is enforced
// case-insensitively; a collision maps to auth.ErrUsernameTaken.
func (r *PlayerRepository) Create(ctx context.Context, player *auth.Player) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO players (id, username, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		player.ID.String(),
		player.Username,
		player.DisplayName,
		player.PasswordHash,
		player.CreatedAt,
		player.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("PLAYER_USERNAME_TAKEN").
				With("username", player.Username).
				Wrap(auth.ErrUsernameTaken)
		}
		return oops.Code("PLAYER_CREATE_FAILED").
			With("operation", "insert player").
			With("username", player.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a player by ID.
func (r *PlayerRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, display_name, password_hash, created_at, updated_at
		FROM players
		WHERE id = $1
	`, id.String())

	player, err := r.scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_BY_ID_FAILED").
			With("operation", "get player by id").
			With("id", id.String()).
			Wrap(err)
	}
	return player, nil
}

// GetByUsername retrieves a player by username (case-insensitive).
func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (*auth.Player, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, username, display_name, password_hash, created_at, updated_at
		FROM players
		WHERE LOWER(username) = LOWER($1)
	`, username)

	player, err := r.scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("PLAYER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("PLAYER_GET_BY_USERNAME_FAILED").
			With("operation", "get player by username").
			With("username", username).
			Wrap(err)
	}
	return player, nil
}

// UpdatePassword updates only the password hash for a player.
func (r *PlayerRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE players SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("PLAYER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a player.
func (r *PlayerRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM players WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("PLAYER_DELETE_FAILED").
			With("operation", "delete player").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("PLAYER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanPlayer scans a single row into a Player.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *PlayerRepository) scanPlayer(row pgx.Row) (*auth.Player, error) {
	var (
		idStr        string
		username     string
		displayName  string
		passwordHash string
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := row.Scan(&idStr, &username, &displayName, &passwordHash, &createdAt, &updatedAt)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("PLAYER_SCAN_FAILED").
			With("operation", "scan player").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("PLAYER_INVALID_ID").
			With("operation", "parse player id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Player{
		ID:           id,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PlayerRepository = (*PlayerRepository)(nil)
