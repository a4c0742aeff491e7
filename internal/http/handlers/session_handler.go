// Session HTTP handlers.
//
// The session endpoints expose the caller's live conversation state: active
// thread, cached messages (with their pending persistence flags), reactions,
// and UI language. The state lives in memory per user; it is rebuilt from
// storage when a thread is opened.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/services"
)

// SessionResponse is a snapshot of the caller's session state.
type SessionResponse struct {
	UserID         string                  `json:"user_id"`
	Language       string                  `json:"language"`
	ActiveThreadID string                  `json:"active_thread_id,omitempty"`
	Messages       []domain.Message        `json:"messages"`
	Feedback       map[int]domain.Feedback `json:"feedback"`
	PendingDelete  *services.PendingDelete `json:"pending_delete,omitempty"`
}

// SetLanguageRequest switches the session UI language.
type SetLanguageRequest struct {
	Language string `json:"language" binding:"required" example:"es"`
}

// GetSession godoc
// @ID          getSession
// @Summary     Current session snapshot
// @Description Returns the caller's live session: active thread, message and
// @Description feedback caches, language, and any pending deletion request.
// @Tags        Session
// @Produce     json
// @Success     200  {object}  handlers.SessionResponse
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	sess := h.session(c)
	ok(c, http.StatusOK, SessionResponse{
		UserID:         sess.UserID,
		Language:       sess.Language(),
		ActiveThreadID: sess.ActiveThreadID(),
		Messages:       sess.Messages(),
		Feedback:       sess.Feedback(),
		PendingDelete:  sess.PendingDeleteRequest(),
	})
}

// SetLanguage godoc
// @ID          setSessionLanguage
// @Summary     Switch session language
// @Description Sets the session UI language for subsequent replies. The
// @Description stored profile preference is unchanged; use the profile
// @Description endpoint to persist it.
// @Tags        Session
// @Accept      json
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /session/language [post]
func (h *Handlers) SetLanguage(c *gin.Context) {
	var req SetLanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language required")
		return
	}
	h.session(c).SetLanguage(services.NormalizeLanguage(req.Language))
	noContent(c)
}
