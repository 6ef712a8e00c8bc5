// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/xoarena/xoarena/pkg/errutil"
)

// errorResponse is the wire shape of every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// codeValidation tags requests whose body could not be parsed or is missing
// required fields.
const codeValidation = "AUTH_VALIDATION"

// codeMapping pairs an HTTP status with the public message for one error
// code. Messages here are the only ones that ever reach a response body;
// the underlying error text stays server-side.
type codeMapping struct {
	status  int
	message string
}

// codeMappings is the central error taxonomy of the HTTP surface. Every
// domain error code a handler can see has exactly one row; anything absent
// is an internal failure and collapses to a generic 500.
var codeMappings = map[string]codeMapping{
	"CHALLENGE_NOT_FOUND":       {http.StatusForbidden, "unknown or expired captcha challenge"},
	"CHALLENGE_ANSWER_MISMATCH": {http.StatusForbidden, "wrong captcha answer"},
	"AUTH_INVALID_CREDENTIALS":  {http.StatusBadRequest, "invalid username or password"},
	"AUTH_USERNAME_TAKEN":       {http.StatusBadRequest, "username already exists"},
	"AUTH_INVALID_USERNAME":     {http.StatusBadRequest, "invalid username"},
	"AUTH_INVALID_PASSWORD":     {http.StatusBadRequest, "invalid password"},
	"AUTH_INVALID_DISPLAY_NAME": {http.StatusBadRequest, "invalid display name"},
	codeValidation:              {http.StatusBadRequest, "malformed request body"},
	"UNAUTHORIZED":              {http.StatusUnauthorized, "missing bearer token"},
	"TOKEN_INVALID":             {http.StatusUnauthorized, "invalid token"},
	"TOKEN_EXPIRED":             {http.StatusUnauthorized, "token is expired"},
	"TOKEN_NOT_REFRESH":         {http.StatusBadRequest, "token is not a refresh token"},
	"TOKEN_NOT_ACTIVE":          {http.StatusForbidden, "refresh token is not active yet"},
	"PLAYER_NOT_FOUND":          {http.StatusNotFound, "player not found"},
}

// errorCode extracts the taxonomy code from an error, or "" if it carries
// none.
func errorCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}

// writeError resolves err against the taxonomy and writes the response.
// Unmapped errors become a generic 500 with the cause logged, never echoed.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	if m, ok := codeMappings[errorCode(err)]; ok {
		c.JSON(m.status, errorResponse{Code: errorCode(err), Message: m.message})
		return
	}

	errutil.LogError(logger, "request failed", err)
	c.JSON(http.StatusInternalServerError, errorResponse{
		Code:    "INTERNAL",
		Message: "internal server error",
	})
}

// abortWithCode rejects the request with a taxonomy code known to be mapped.
// Used by middleware, which produces codes rather than domain errors.
func abortWithCode(c *gin.Context, code string) {
	m := codeMappings[code]
	c.AbortWithStatusJSON(m.status, errorResponse{Code: code, Message: m.message})
}
