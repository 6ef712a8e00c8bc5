// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package api

import (
	"time"

	"github.com/xoarena/xoarena/internal/auth"
)

// captchaResponse carries a freshly issued challenge. The answer never
// appears here; the ID is the only handle the client gets back.
type captchaResponse struct {
	CaptchaID    string    `json:"captcha_id"`
	CaptchaImage string    `json:"captcha_image"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// signupRequest is the registration payload. DisplayName is optional.
type signupRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	DisplayName   string `json:"display_name"`
	CaptchaID     string `json:"captcha_id" binding:"required"`
	CaptchaAnswer string `json:"captcha_answer" binding:"required"`
}

// signinRequest carries login credentials.
type signinRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// tokenPairResponse is the wire form of an issued token pair. Expiry
// metadata is advisory; the authoritative instants live inside the signed
// tokens.
type tokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func newTokenPairResponse(pair *auth.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.Access.Token,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Token,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

// playerResponse is the public view of an account. The password hash never
// leaves the server.
type playerResponse struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newPlayerResponse(player *auth.Player) playerResponse {
	return playerResponse{
		ID:          player.ID.String(),
		Username:    player.Username,
		DisplayName: player.DisplayName,
		CreatedAt:   player.CreatedAt,
	}
}
