// Auth HTTP handlers.
//
// This file exposes the account endpoints:
//   - POST /auth/register   (create account, returns tokens)
//   - POST /auth/login      (password sign-in)
//   - POST /auth/refresh    (exchange refresh token for new pair)
//   - POST /auth/restore    (session restore with bounded retries)
//   - POST /auth/logout     (drop the server-side session state)
//
// Sign-in failures are indistinguishable by design: unknown email and wrong
// password both map to 401 invalid credentials.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/animoa/animoa-backend/internal/auth"
)

//
// DTOs
//

// CredentialsRequest is the JSON payload for register and login.
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"correct horse battery"`
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register godoc
// @ID          register
// @Summary     Create an account
// @Description Registers a new user and returns an access/refresh token pair.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
// @Success     201  {object}  auth.Session
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	sess, err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrCodeConflict, "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, sess)
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Description Verifies credentials and returns an access/refresh token pair.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CredentialsRequest  true  "Credentials"
// @Success     200  {object}  auth.Session
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}
	sess, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid credentials")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, sess)
}

// Refresh godoc
// @ID          refreshToken
// @Summary     Refresh tokens
// @Description Exchanges a valid refresh token for a new access/refresh pair.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RefreshRequest  true  "Refresh token"
// @Success     200  {object}  auth.Session
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or expired token"
// @Router      /auth/refresh [post]
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "refresh_token required")
		return
	}
	sess, err := h.Auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
		return
	}
	ok(c, http.StatusOK, sess)
}

// Restore godoc
// @ID          restoreSession
// @Summary     Restore a session
// @Description Like refresh, but retries transient backend failures a fixed
// @Description number of times before giving up. An invalid token fails
// @Description immediately without retrying.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RefreshRequest  true  "Refresh token"
// @Success     200  {object}  auth.Session
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid or expired token"
// @Failure     503  {object}  handlers.ErrorResponse  "Backend unavailable"
// @Router      /auth/restore [post]
func (h *Handlers) Restore(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "refresh_token required")
		return
	}
	sess, err := h.Auth.RestoreSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired token")
			return
		}
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "could not restore session")
		return
	}
	ok(c, http.StatusOK, sess)
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Drops the caller's server-side session state. Tokens are
// @Description stateless and simply expire.
// @Tags        Auth
// @Success     204  {string}  string  "No Content"
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	h.Sessions.Clear(userID(c))
	noContent(c)
}
