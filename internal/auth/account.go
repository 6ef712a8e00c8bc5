// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// AccountService coordinates the signup and signin flows.
//
// Signup composes three independent trust decisions in a fixed order:
// the captcha challenge is verified (and consumed) first, then the
// registration data is validated, then the account is created and a token
// pair minted. A signup that fails validation has therefore already spent
// its challenge token.
type AccountService struct {
	players    PlayerRepository
	hasher     PasswordHasher
	challenges *ChallengeService
	verifier   *CredentialVerifier
	issuer     *Issuer
}

// NewAccountService creates a new AccountService.
func NewAccountService(
	players PlayerRepository,
	hasher PasswordHasher,
	challenges *ChallengeService,
	verifier *CredentialVerifier,
	issuer *Issuer,
) *AccountService {
	return &AccountService{
		players:    players,
		hasher:     hasher,
		challenges: challenges,
		verifier:   verifier,
		issuer:     issuer,
	}
}

// SignupParams carries the registration data for a new account. DisplayName
// is optional.
type SignupParams struct {
	Username        string
	DisplayName     string
	Password        string
	ChallengeToken  string
	ChallengeAnswer string
}

// Signup creates a new player account gated by a captcha challenge and
// returns the player with a freshly minted token pair.
func (s *AccountService) Signup(ctx context.Context, params SignupParams) (*Player, *TokenPair, error) {
	if err := s.challenges.Verify(ctx, params.ChallengeToken, params.ChallengeAnswer); err != nil {
		return nil, nil, err
	}

	if err := ValidateUsername(params.Username); err != nil {
		return nil, nil, err
	}
	if err := ValidateDisplayName(params.DisplayName); err != nil {
		return nil, nil, err
	}
	if err := ValidatePassword(params.Password); err != nil {
		return nil, nil, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	player, err := NewPlayer(params.Username, params.DisplayName, hash)
	if err != nil {
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create player").
			Wrap(err)
	}

	if err := s.players.Create(ctx, player); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, nil, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", params.Username).
				Errorf("username already exists")
		}
		return nil, nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "persist player").
			Wrap(err)
	}

	pair, err := s.issuer.Issue(player.ID)
	if err != nil {
		return nil, nil, err
	}
	return player, pair, nil
}

// Signin authenticates an existing player and returns a fresh token pair.
// Input format violations are rejected before any lookup; credential
// failures are indistinguishable between unknown user and wrong password.
func (s *AccountService) Signin(ctx context.Context, username, password string) (*Player, *TokenPair, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, nil, err
	}

	player, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.issuer.Issue(player.ID)
	if err != nil {
		return nil, nil, err
	}
	return player, pair, nil
}

// GetPlayer retrieves a player by ID, typically the subject of admitted
// claims.
func (s *AccountService) GetPlayer(ctx context.Context, id ulid.ULID) (*Player, error) {
	player, err := s.players.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("PLAYER_NOT_FOUND").
				With("player_id", id.String()).
				Wrap(err)
		}
		return nil, oops.Code("PLAYER_GET_FAILED").
			With("operation", "get player by id").
			Wrap(err)
	}
	return player, nil
}
