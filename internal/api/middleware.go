// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xoarena/xoarena/internal/auth"
	"github.com/xoarena/xoarena/internal/observability"
)

// claimsKey is the gin context key RequireToken stores admitted claims under.
const claimsKey = "xoarena.claims"

// ClaimsFrom returns the claims RequireToken attached to the request, if any.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// RequireToken is the auth gate. It admits requests carrying a decodable,
// unexpired bearer token and attaches the claims to the context; everything
// else is rejected with exactly one tagged outcome.
//
// The gate checks validity and expiry only. Token kind and activation are
// endpoint concerns layered on top by the handlers that care.
func RequireToken(codec *auth.Codec, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) < 8 || header[:7] != "Bearer " {
			metrics.GateDecisions.WithLabelValues(observability.GateUnauthorized).Inc()
			abortWithCode(c, "UNAUTHORIZED")
			return
		}

		claims, err := codec.Decode(header[7:])
		if err != nil {
			metrics.GateDecisions.WithLabelValues(observability.GateInvalid).Inc()
			abortWithCode(c, "TOKEN_INVALID")
			return
		}

		if claims.IsExpired() {
			metrics.GateDecisions.WithLabelValues(observability.GateExpired).Inc()
			abortWithCode(c, "TOKEN_EXPIRED")
			return
		}

		metrics.GateDecisions.WithLabelValues(observability.GateAdmitted).Inc()
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requestLogger logs each request after it completes.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
