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

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// IssuedToken is one encoded token plus the timing metadata clients display.
type IssuedToken struct {
	Token       string
	ExpiresAt   time.Time
	ActiveAfter *time.Time // refresh tokens only
}

// TokenPair is the externally visible result of issuance: an access token
// usable immediately and a refresh token usable only after its activation
// instant.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Issuer mints token pairs for authenticated players and rotates them
// through the refresh flow.
//
// The refresh token's activation equals the access token's expiry. A leaked
// refresh token is therefore useless until the access token it shipped with
// has run out, which bounds how early a stolen pair can be rotated.
type Issuer struct {
	codec      *Codec
	players    PlayerRepository
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewIssuer creates an Issuer. The refresh TTL must exceed the access TTL,
// otherwise the refresh token would activate after its own expiry.
func NewIssuer(codec *Codec, players PlayerRepository, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if codec == nil {
		return nil, oops.Code("TOKEN_ISSUER_INVALID").Errorf("codec cannot be nil")
	}
	if players == nil {
		return nil, oops.Code("TOKEN_ISSUER_INVALID").Errorf("player repository cannot be nil")
	}
	if accessTTL <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").
			With("access_ttl", accessTTL).
			Errorf("access TTL must be positive")
	}
	if refreshTTL <= accessTTL {
		return nil, oops.Code("TOKEN_TTL_INVALID").
			With("access_ttl", accessTTL).
			With("refresh_ttl", refreshTTL).
			Errorf("refresh TTL must exceed access TTL")
	}
	return &Issuer{
		codec:      codec,
		players:    players,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// Issue mints a token pair for the given player.
//
// Times are truncated to whole seconds before signing so the encoded claims
// round-trip exactly: the decoded refresh activation equals the decoded
// access expiry to the second.
func (i *Issuer) Issue(playerID ulid.ULID) (*TokenPair, error) {
	now := time.Now().Truncate(time.Second)
	accessExpiry := now.Add(i.accessTTL)
	refreshExpiry := now.Add(i.refreshTTL)

	access, err := NewAccessClaims(playerID, accessExpiry)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "build access claims").
			Wrap(err)
	}
	refresh, err := NewRefreshClaims(playerID, accessExpiry, refreshExpiry)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "build refresh claims").
			Wrap(err)
	}

	accessToken, err := i.codec.Encode(access)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "encode access token").
			Wrap(err)
	}
	refreshToken, err := i.codec.Encode(refresh)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "encode refresh token").
			Wrap(err)
	}

	return &TokenPair{
		Access: IssuedToken{
			Token:     accessToken,
			ExpiresAt: access.ExpiresAt,
		},
		Refresh: IssuedToken{
			Token:       refreshToken,
			ExpiresAt:   refresh.ExpiresAt,
			ActiveAfter: refresh.ActiveAfter,
		},
	}, nil
}

// Refresh rotates an admitted refresh token into a fresh token pair.
//
// The checks run in a fixed order: token kind, expiry, activation, then
// subject resolution. Claims lacking an activation field were minted as
// access tokens and are rejected with TOKEN_NOT_REFRESH; a refresh token
// presented before its activation instant is rejected with TOKEN_NOT_ACTIVE;
// a subject that no longer resolves to a player is PLAYER_NOT_FOUND.
func (i *Issuer) Refresh(ctx context.Context, claims *Claims) (*TokenPair, error) {
	if claims == nil {
		return nil, oops.Code("TOKEN_INVALID").Errorf("missing claims")
	}
	if !claims.IsRefreshToken() {
		return nil, oops.Code("TOKEN_NOT_REFRESH").Errorf("token is not a refresh token")
	}
	if claims.IsExpired() {
		return nil, oops.Code("TOKEN_EXPIRED").Errorf("token is expired")
	}
	if !claims.IsActive() {
		return nil, oops.Code("TOKEN_NOT_ACTIVE").
			With("active_after", claims.ActiveAfter).
			Errorf("refresh token is not active yet")
	}

	player, err := i.players.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("PLAYER_NOT_FOUND").
				With("subject", claims.Subject.String()).
				Wrap(err)
		}
		return nil, oops.Code("TOKEN_REFRESH_FAILED").
			With("operation", "get player by subject").
			Wrap(err)
	}

	return i.Issue(player.ID)
}
