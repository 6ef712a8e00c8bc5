// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialVerifier checks a username/password pair against stored hashes.
//
// Failures never distinguish "unknown user" from "wrong password": both
// produce the identical AUTH_INVALID_CREDENTIALS error, and hashing-library
// failures collapse to a mismatch rather than propagating, so the error
// surface leaks nothing about which usernames exist.
type CredentialVerifier struct {
	players PlayerRepository
	hasher  PasswordHasher
}

// NewCredentialVerifier creates a new CredentialVerifier.
func NewCredentialVerifier(players PlayerRepository, hasher PasswordHasher) *CredentialVerifier {
	return &CredentialVerifier{
		players: players,
		hasher:  hasher,
	}
}

// errInvalidCredentials builds the single rejection all credential failures share.
func errInvalidCredentials() error {
	return oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid username or password")
}

// Verify authenticates a username/password pair and returns the player.
// Uses constant-time operations to prevent timing-based username enumeration:
// the password is hashed and compared even when the username is unknown.
//
// On success, a legacy (non-argon2id) stored hash is transparently re-hashed
// with the current algorithm; the upgrade is best effort and never fails the
// verification.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*Player, error) {
	player, lookupErr := v.players.GetByUsername(ctx, username)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	targetHash := dummyPasswordHash
	playerExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_VERIFY_FAILED").
				With("operation", "get player by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = player.PasswordHash
		playerExists = true
	}

	// Always verify the password. A corrupt or unsupported stored hash
	// collapses to a mismatch so the rejection stays indistinguishable.
	valid, verifyErr := v.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		valid = false
	}

	if !playerExists || !valid {
		return nil, errInvalidCredentials()
	}

	// Upgrade legacy hashes on successful verification (e.g., bcrypt to argon2id).
	if v.hasher.NeedsUpgrade(player.PasswordHash) {
		if newHash, hashErr := v.hasher.Hash(password); hashErr == nil {
			if err := v.players.UpdatePassword(ctx, player.ID, newHash); err == nil {
				player.PasswordHash = newHash
			}
		}
	}

	return player, nil
}
