// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// Password validation constraints, in bytes. The upper bound matches the
// bcrypt input limit so legacy hashes stay verifiable.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// MaxDisplayNameLength bounds the optional display name.
const MaxDisplayNameLength = 50

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Player represents a player account. The ID doubles as the token subject:
// claims minted for a player carry it, and the refresh flow re-resolves the
// account through it.
type Player struct {
	ID           ulid.ULID
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewPlayer creates a validated Player with a fresh ID. The display name is
// optional and may be empty. The password hash must already be computed by a
// PasswordHasher.
func NewPlayer(username, displayName, passwordHash string) (*Player, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateDisplayName(displayName); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Player{
		ID:           ulid.Make(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// ValidateDisplayName validates an optional display name. Empty is allowed;
// a non-empty name only has its length bounded.
func ValidateDisplayName(displayName string) error {
	if len(displayName) > MaxDisplayNameLength {
		return oops.Code("AUTH_INVALID_DISPLAY_NAME").
			With("max", MaxDisplayNameLength).
			Errorf("display name must be at most %d characters", MaxDisplayNameLength)
	}
	return nil
}

// ValidatePassword validates a plaintext password against length rules.
// Content is unrestricted; only byte length is checked.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Errorf("password must be at least %d bytes", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// PlayerRepository manages player persistence.
type PlayerRepository interface {
	// Create stores a new player.
	// Returns ErrUsernameTaken (wrapped) if the username already exists.
	Create(ctx context.Context, player *Player) error

	// GetByID retrieves a player by ID.
	// Returns ErrNotFound (wrapped) if no player has the given ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Player, error)

	// GetByUsername retrieves a player by username (case-insensitive).
	// Returns ErrNotFound (wrapped) if no player has the given username.
	GetByUsername(ctx context.Context, username string) (*Player, error)

	// UpdatePassword updates only the password hash for a player.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error
}
