// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides RequireAuth, the bearer-token gate for the API. It
// extracts the access token from the Authorization header, verifies it, and
// stores the resulting user id in the Gin context under "userID" for the
// handlers downstream.
//
// Design notes:
//   - Verification is abstracted behind TokenVerifier so the middleware does
//     not depend on the signing implementation
//   - Failures respond with the same error envelope as the handlers package
//   - Optional mode lets read-only or demo deployments pass unauthenticated
//     requests through (handlers then fall back to their demo identity)
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenVerifier validates an access token and returns the user id it was
// issued for.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// AuthOptions configures RequireAuth.
//
// Optional, when true, lets requests without an Authorization header proceed
// unauthenticated instead of failing with 401. Requests that do present a
// token are still verified and rejected when it is invalid.
type AuthOptions struct {
	Optional bool
}

// ContextUserIDKey is the Gin context key under which the authenticated user
// id is stored.
const ContextUserIDKey = "userID"

// RequireAuth returns a middleware that authenticates requests with a
// "Bearer <token>" Authorization header.
//
// Behavior:
//   - Missing header: 401 (or pass-through when opt.Optional)
//   - Malformed header or failed verification: 401
//   - Success: c.Set("userID", uid) and continue
func RequireAuth(verifier TokenVerifier, opt AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			if opt.Optional {
				c.Next()
				return
			}
			unauthorized(c, "missing bearer token")
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "malformed authorization header")
			return
		}

		uid, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, uid)
		c.Next()
	}
}

// unauthorized aborts the request with the shared error envelope. The token
// itself is never echoed back.
func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": msg,
		},
	})
}
