// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Claims is the payload carried inside every signed token.
//
// A claims value is exactly one of two kinds: an access token has no
// activation timestamp, a refresh token always has one. Kind is derived
// from the ActiveAfter field alone, never from any other signal.
// Claims are immutable once issued; callers re-derive them by decoding,
// never by mutating in place.
type Claims struct {
	// Subject is the stable identity handle of the token's owner.
	Subject ulid.ULID

	// ActiveAfter is the instant at or after which a refresh token becomes
	// usable. Nil for access tokens.
	ActiveAfter *time.Time

	// ExpiresAt is the instant at or after which the token must be rejected
	// regardless of other fields.
	ExpiresAt time.Time
}

// NewAccessClaims creates claims for an access token.
func NewAccessClaims(subject ulid.ULID, expiresAt time.Time) (*Claims, error) {
	if subject.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_SUBJECT").Errorf("subject cannot be zero")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	return &Claims{
		Subject:   subject,
		ExpiresAt: expiresAt,
	}, nil
}

// NewRefreshClaims creates claims for a refresh token that activates at
// activeAfter and expires at expiresAt.
func NewRefreshClaims(subject ulid.ULID, activeAfter, expiresAt time.Time) (*Claims, error) {
	if subject.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("TOKEN_INVALID_SUBJECT").Errorf("subject cannot be zero")
	}
	if activeAfter.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_ACTIVATION").Errorf("activation time cannot be zero")
	}
	if expiresAt.IsZero() {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").Errorf("expiry time cannot be zero")
	}
	if !expiresAt.After(activeAfter) {
		return nil, oops.Code("TOKEN_INVALID_EXPIRY").
			With("active_after", activeAfter).
			With("expires_at", expiresAt).
			Errorf("expiry must be after activation time")
	}
	return &Claims{
		Subject:     subject,
		ActiveAfter: &activeAfter,
		ExpiresAt:   expiresAt,
	}, nil
}

// IsRefreshToken returns true if the claims belong to a refresh token.
// Defined purely as "activation field present".
func (c *Claims) IsRefreshToken() bool {
	return c.ActiveAfter != nil
}

// IsExpired returns true if the token is expired now.
func (c *Claims) IsExpired() bool {
	return c.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the token would be expired at the given time.
// A token is expired at or after its expiry instant, never before it.
// Useful for testing with deterministic time values.
func (c *Claims) IsExpiredAt(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}

// IsActive returns true if the token is usable now.
func (c *Claims) IsActive() bool {
	return c.IsActiveAt(time.Now())
}

// IsActiveAt returns true if the token would be usable at the given time.
// Access tokens are always active; refresh tokens become active at their
// activation instant.
func (c *Claims) IsActiveAt(t time.Time) bool {
	if c.ActiveAfter == nil {
		return true
	}
	return !c.ActiveAfter.After(t)
}
