// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/internal/auth"
)

// ChallengeRepository implements auth.ChallengeRepository using PostgreSQL.
//
// Rows are not reaped automatically; run DeleteExpired periodically to keep
// the table from accumulating abandoned challenges.
type ChallengeRepository struct {
	pool poolIface
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(pool poolIface) *ChallengeRepository {
	return &ChallengeRepository{pool: pool}
}

// Create stores a new challenge.
func (r *ChallengeRepository) Create(ctx context.Context, challenge *auth.Challenge) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO challenges (id, answer, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		challenge.ID.String(),
		challenge.Answer,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)
	if err != nil {
		return oops.Code("CHALLENGE_CREATE_FAILED").
			With("operation", "insert challenge").
			With("id", challenge.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a challenge by ID.
func (r *ChallengeRepository) Get(ctx context.Context, id ulid.ULID) (*auth.Challenge, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, answer, expires_at, created_at
		FROM challenges
		WHERE id = $1
	`, id.String())

	challenge, err := r.scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("CHALLENGE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("CHALLENGE_GET_FAILED").
			With("operation", "get challenge").
			With("id", id.String()).
			Wrap(err)
	}
	return challenge, nil
}

// Delete removes a challenge. Deleting an already-consumed challenge reports
// ErrNotFound, which keeps concurrent consumers from both succeeding.
func (r *ChallengeRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM challenges WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("CHALLENGE_DELETE_FAILED").
			With("operation", "delete challenge").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("CHALLENGE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all expired challenges and returns the count of
// deleted records.
func (r *ChallengeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM challenges WHERE expires_at < $1
	`, time.Now())
	if err != nil {
		return 0, oops.Code("CHALLENGE_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired challenges").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanChallenge scans a single row into a Challenge.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *ChallengeRepository) scanChallenge(row pgx.Row) (*auth.Challenge, error) {
	var (
		idStr     string
		answer    string
		expiresAt time.Time
		createdAt time.Time
	)

	err := row.Scan(&idStr, &answer, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("CHALLENGE_SCAN_FAILED").
			With("operation", "scan challenge").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("CHALLENGE_INVALID_ID").
			With("operation", "parse challenge id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Challenge{
		ID:        id,
		Answer:    answer,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.ChallengeRepository = (*ChallengeRepository)(nil)
