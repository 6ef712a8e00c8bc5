// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/internal/auth"
	"github.com/xoarena/xoarena/internal/observability"
)

// Handlers bundles the HTTP handlers for the auth endpoints.
type Handlers struct {
	challenges *auth.ChallengeService
	accounts   *auth.AccountService
	issuer     *auth.Issuer
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	challenges *auth.ChallengeService,
	accounts *auth.AccountService,
	issuer *auth.Issuer,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		challenges: challenges,
		accounts:   accounts,
		issuer:     issuer,
		metrics:    metrics,
		logger:     logger,
	}
}

// outcomeFor classifies a flow failure for metrics: mapped taxonomy codes
// are rejections, anything else is an internal error.
func (h *Handlers) outcomeFor(err error) string {
	if _, ok := codeMappings[errorCode(err)]; ok {
		return observability.OutcomeRejected
	}
	return observability.OutcomeError
}

// Captcha issues a new challenge and returns its correlation ID, the
// rendered puzzle image, and the expiry. The answer stays server-side.
func (h *Handlers) Captcha(c *gin.Context) {
	challenge, image, err := h.challenges.Issue(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.metrics.ChallengesIssued.Inc()

	c.JSON(http.StatusOK, captchaResponse{
		CaptchaID:    challenge.ID.String(),
		CaptchaImage: image,
		ExpiresAt:    challenge.ExpiresAt,
	})
}

// Signup registers a new account gated by a captcha challenge and returns
// a freshly minted token pair.
func (h *Handlers) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.Signups.WithLabelValues(observability.OutcomeRejected).Inc()
		writeError(c, h.logger, oops.Code(codeValidation).Wrap(err))
		return
	}

	_, pair, err := h.accounts.Signup(c.Request.Context(), auth.SignupParams{
		Username:        req.Username,
		DisplayName:     req.DisplayName,
		Password:        req.Password,
		ChallengeToken:  req.CaptchaID,
		ChallengeAnswer: req.CaptchaAnswer,
	})
	h.recordChallengeCheck(err)
	if err != nil {
		h.metrics.Signups.WithLabelValues(h.outcomeFor(err)).Inc()
		writeError(c, h.logger, err)
		return
	}

	h.metrics.Signups.WithLabelValues(observability.OutcomeOK).Inc()
	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

// recordChallengeCheck tags the captcha verification embedded in a signup.
// A flow that got past the challenge counts as a passed check even when
// the signup failed later.
func (h *Handlers) recordChallengeCheck(err error) {
	switch errorCode(err) {
	case "CHALLENGE_NOT_FOUND", "CHALLENGE_ANSWER_MISMATCH":
		h.metrics.ChallengeChecks.WithLabelValues(observability.OutcomeRejected).Inc()
	case "CHALLENGE_VERIFY_FAILED":
		h.metrics.ChallengeChecks.WithLabelValues(observability.OutcomeError).Inc()
	default:
		h.metrics.ChallengeChecks.WithLabelValues(observability.OutcomeOK).Inc()
	}
}

// Signin authenticates an existing account and returns a fresh token pair.
func (h *Handlers) Signin(c *gin.Context) {
	var req signinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.Signins.WithLabelValues(observability.OutcomeRejected).Inc()
		writeError(c, h.logger, oops.Code(codeValidation).Wrap(err))
		return
	}

	_, pair, err := h.accounts.Signin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.Signins.WithLabelValues(h.outcomeFor(err)).Inc()
		writeError(c, h.logger, err)
		return
	}

	h.metrics.Signins.WithLabelValues(observability.OutcomeOK).Inc()
	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

// Refresh rotates an admitted refresh token into a fresh pair. Runs behind
// RequireToken, which has already rejected missing, undecodable, and
// expired tokens.
func (h *Handlers) Refresh(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, h.logger, oops.Errorf("refresh route reached without admitted claims"))
		return
	}

	pair, err := h.issuer.Refresh(c.Request.Context(), claims)
	if err != nil {
		h.metrics.Refreshes.WithLabelValues(h.outcomeFor(err)).Inc()
		writeError(c, h.logger, err)
		return
	}

	h.metrics.Refreshes.WithLabelValues(observability.OutcomeOK).Inc()
	c.JSON(http.StatusOK, newTokenPairResponse(pair))
}

// Me returns the profile of the authenticated player.
func (h *Handlers) Me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, h.logger, oops.Errorf("me route reached without admitted claims"))
		return
	}

	player, err := h.accounts.GetPlayer(c.Request.Context(), claims.Subject)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newPlayerResponse(player))
}
