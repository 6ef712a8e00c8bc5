// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ChallengeValidity is how long a captcha challenge stays answerable.
const ChallengeValidity = 5 * time.Minute

// Challenge is the server-side state for one human-verification attempt.
// The ID is the opaque correlation token handed to the caller; the answer
// never leaves the server.
type Challenge struct {
	ID        ulid.ULID
	Answer    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewChallenge creates a validated Challenge with a fresh correlation ID.
func NewChallenge(answer string, expiresAt time.Time) (*Challenge, error) {
	if answer == "" {
		return nil, oops.Code("CHALLENGE_INVALID_ANSWER").Errorf("answer cannot be empty")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("CHALLENGE_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}

	return &Challenge{
		ID:        ulid.Make(),
		Answer:    answer,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpired returns true if the challenge has expired.
func (c *Challenge) IsExpired() bool {
	return c.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the challenge would be expired at the given time.
// Useful for testing with deterministic time values.
func (c *Challenge) IsExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// ChallengeRepository manages challenge persistence.
type ChallengeRepository interface {
	// Create stores a new challenge.
	Create(ctx context.Context, challenge *Challenge) error

	// Get retrieves a challenge by ID.
	// Returns ErrNotFound (wrapped) if no challenge has the given ID.
	Get(ctx context.Context, id ulid.ULID) (*Challenge, error)

	// Delete removes a challenge by ID.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes all expired challenges and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}

// CaptchaGenerator produces human-verification puzzles.
type CaptchaGenerator interface {
	// Generate returns the expected text answer and the rendered puzzle
	// image as a base64 data URI.
	Generate() (answer, imageDataURI string, err error)
}

// ChallengeService issues captcha challenges and verifies answers.
//
// A challenge is answerable until it expires. Wrong answers leave the record
// in place so the caller may retry; a correct answer consumes the record so
// the correlation token cannot gate a second signup.
type ChallengeService struct {
	challenges ChallengeRepository
	generator  CaptchaGenerator
}

// NewChallengeService creates a new ChallengeService.
func NewChallengeService(challenges ChallengeRepository, generator CaptchaGenerator) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		generator:  generator,
	}
}

// Issue generates a new challenge, persists it, and returns it alongside the
// puzzle image. Callers must only expose the challenge ID and expiry, never
// the answer.
func (s *ChallengeService) Issue(ctx context.Context) (*Challenge, string, error) {
	answer, image, err := s.generator.Generate()
	if err != nil {
		return nil, "", oops.Code("CHALLENGE_ISSUE_FAILED").
			With("operation", "generate captcha").
			Wrap(err)
	}

	challenge, err := NewChallenge(answer, time.Now().Add(ChallengeValidity))
	if err != nil {
		return nil, "", oops.Code("CHALLENGE_ISSUE_FAILED").
			With("operation", "create challenge").
			Wrap(err)
	}

	if err := s.challenges.Create(ctx, challenge); err != nil {
		return nil, "", oops.Code("CHALLENGE_ISSUE_FAILED").
			With("operation", "persist challenge").
			Wrap(err)
	}

	return challenge, image, nil
}

// Verify checks a submitted answer against the challenge identified by the
// opaque correlation token.
//
// Unknown, unparseable, and expired tokens are all reported as
// CHALLENGE_NOT_FOUND so the caller cannot probe which IDs exist. A wrong
// answer returns CHALLENGE_ANSWER_MISMATCH and leaves the record intact for
// retries until expiry. A correct answer deletes the record; the comparison
// is case-sensitive.
func (s *ChallengeService) Verify(ctx context.Context, token, answer string) error {
	id, err := ulid.Parse(token)
	if err != nil {
		return oops.Code("CHALLENGE_NOT_FOUND").Errorf("unknown or expired challenge")
	}

	challenge, err := s.challenges.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("CHALLENGE_NOT_FOUND").Errorf("unknown or expired challenge")
		}
		return oops.Code("CHALLENGE_VERIFY_FAILED").
			With("operation", "get challenge").
			Wrap(err)
	}

	if challenge.IsExpired() {
		_ = s.challenges.Delete(ctx, id) //nolint:errcheck // Best effort, record is void either way
		return oops.Code("CHALLENGE_NOT_FOUND").Errorf("unknown or expired challenge")
	}

	if challenge.Answer != answer {
		return oops.Code("CHALLENGE_ANSWER_MISMATCH").Errorf("wrong challenge answer")
	}

	// Consume the record so the token cannot be replayed for another signup.
	if err := s.challenges.Delete(ctx, id); err != nil {
		return oops.Code("CHALLENGE_VERIFY_FAILED").
			With("operation", "consume challenge").
			With("challenge_id", id.String()).
			Wrap(err)
	}

	return nil
}

// PurgeExpired removes expired challenge records and returns how many were
// deleted. Intended for operational cleanup; TTL-native stores may have
// nothing to do.
func (s *ChallengeService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.challenges.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("CHALLENGE_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}
