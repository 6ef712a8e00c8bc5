// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package auth provides authentication primitives for XO Arena.
//
// # Domain Types
//
// Domain types (Player, Challenge, Claims) should be created using their
// respective constructors:
//   - NewPlayer - creates a Player with a validated username
//   - NewChallenge - creates a Challenge with its answer and expiry window
//   - NewAccessClaims / NewRefreshClaims - create token claims with timing fields
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
// Service types coordinate domain operations:
//   - ChallengeService - captcha issuance and answer verification
//   - CredentialVerifier - username/password verification
//   - Issuer - access/refresh token pair minting and rotation
//   - AccountService - signup and signin flows
//
// The token model is two-tier: every signin yields a short-lived access token
// and a long-lived refresh token. The refresh token carries an activation
// timestamp equal to the access token's expiry, so it cannot mint a new pair
// until the access token it shipped with has run out.
package auth
