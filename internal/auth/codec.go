// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// wireClaims is the JWT wire form of Claims. ActiveAfter is omitted for
// access tokens so the field's presence alone marks a refresh token.
type wireClaims struct {
	ActiveAfter *jwt.NumericDate `json:"active_after,omitempty"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes signed token claims.
//
// The signing secret is injected once at construction and read-only
// afterwards; a Codec is safe for concurrent use.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec signing with the given secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_EMPTY").Errorf("signing secret cannot be empty")
	}
	return &Codec{secret: secret}, nil
}

// Encode serializes claims and signs them with HMAC-SHA256.
// Encoding is deterministic: identical claims and secret yield the
// identical token string.
func (c *Codec) Encode(claims *Claims) (string, error) {
	wc := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject.String(),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	}
	if claims.ActiveAfter != nil {
		wc.ActiveAfter = jwt.NewNumericDate(*claims.ActiveAfter)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, wc).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_ENCODE_FAILED").Wrap(err)
	}
	return token, nil
}

// Decode verifies the token signature and deserializes its claims.
// Any signature or structure failure is reported as TOKEN_INVALID.
//
// Decode does not check expiry. Expiry is a semantic check layered on top
// via Claims.IsExpired so that callers choose when to apply it; the auth
// gate always does.
func (c *Codec) Decode(raw string) (*Claims, error) {
	var wc wireClaims
	_, err := jwt.ParseWithClaims(raw, &wc,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		// Reject non-canonical base64 so any single-byte tamper fails,
		// including flips confined to spare trailing bits.
		jwt.WithStrictDecoding(),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").Wrap(err)
	}

	if wc.ExpiresAt == nil {
		return nil, oops.Code("TOKEN_INVALID").Errorf("token has no expiry claim")
	}
	subject, err := ulid.Parse(wc.Subject)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID").
			With("operation", "parse subject").
			Wrap(err)
	}

	claims := &Claims{
		Subject:   subject,
		ExpiresAt: wc.ExpiresAt.Time,
	}
	if wc.ActiveAfter != nil {
		t := wc.ActiveAfter.Time
		claims.ActiveAfter = &t
	}
	return claims, nil
}
