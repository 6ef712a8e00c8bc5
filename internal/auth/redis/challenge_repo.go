// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package redis provides Redis-backed auth repositories.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/internal/auth"
)

const challengeKeyPrefix = "challenge:"

// challengeRecord is the stored JSON shape of a challenge. The ID lives in
// the key, not the value.
type challengeRecord struct {
	Answer    string    `json:"answer"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ChallengeRepository implements auth.ChallengeRepository using Redis.
//
// Records carry a native TTL matching the challenge expiry, so Redis reaps
// expired challenges on its own and DeleteExpired has nothing to do.
type ChallengeRepository struct {
	client *goredis.Client
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(client *goredis.Client) *ChallengeRepository {
	return &ChallengeRepository{client: client}
}

func challengeKey(id ulid.ULID) string {
	return challengeKeyPrefix + id.String()
}

// Create stores a new challenge with a TTL running to its expiry.
func (r *ChallengeRepository) Create(ctx context.Context, challenge *auth.Challenge) error {
	ttl := time.Until(challenge.ExpiresAt)
	if ttl <= 0 {
		return oops.Code("CHALLENGE_CREATE_FAILED").
			With("id", challenge.ID.String()).
			Errorf("challenge expiry is in the past")
	}

	payload, err := json.Marshal(challengeRecord{
		Answer:    challenge.Answer,
		ExpiresAt: challenge.ExpiresAt,
		CreatedAt: challenge.CreatedAt,
	})
	if err != nil {
		return oops.Code("CHALLENGE_CREATE_FAILED").
			With("operation", "marshal challenge").
			Wrap(err)
	}

	if err := r.client.Set(ctx, challengeKey(challenge.ID), payload, ttl).Err(); err != nil {
		return oops.Code("CHALLENGE_CREATE_FAILED").
			With("operation", "set challenge").
			With("id", challenge.ID.String()).
			Wrap(err)
	}
	return nil
}

// Get retrieves a challenge by ID. Keys reaped by Redis report ErrNotFound,
// the same as keys that never existed.
func (r *ChallengeRepository) Get(ctx context.Context, id ulid.ULID) (*auth.Challenge, error) {
	data, err := r.client.Get(ctx, challengeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, oops.Code("CHALLENGE_NOT_FOUND").
				With("id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("CHALLENGE_GET_FAILED").
			With("operation", "get challenge").
			With("id", id.String()).
			Wrap(err)
	}

	var record challengeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, oops.Code("CHALLENGE_DECODE_FAILED").
			With("operation", "unmarshal challenge").
			With("id", id.String()).
			Wrap(err)
	}

	return &auth.Challenge{
		ID:        id,
		Answer:    record.Answer,
		ExpiresAt: record.ExpiresAt,
		CreatedAt: record.CreatedAt,
	}, nil
}

// Delete removes a challenge. Deleting an already-consumed challenge reports
// ErrNotFound, which keeps concurrent consumers from both succeeding.
func (r *ChallengeRepository) Delete(ctx context.Context, id ulid.ULID) error {
	n, err := r.client.Del(ctx, challengeKey(id)).Result()
	if err != nil {
		return oops.Code("CHALLENGE_DELETE_FAILED").
			With("operation", "delete challenge").
			With("id", id.String()).
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("CHALLENGE_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired is a no-op: Redis reaps expired keys via their TTL.
func (r *ChallengeRepository) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

// Compile-time interface check.
var _ auth.ChallengeRepository = (*ChallengeRepository)(nil)
