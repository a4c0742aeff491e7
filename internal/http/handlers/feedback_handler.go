// Feedback HTTP handlers.
//
// This file exposes the REST endpoints for reacting to assistant messages:
//   - POST /threads/{id}/messages/{index}/feedback  (react or comment)
//   - GET  /threads/{id}/feedback                   (list reactions)
//
// A reaction is one of the accepted tags; reacting again replaces the earlier
// one. A free-text comment is only accepted for a message already tagged
// not-helpful.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/services"
)

// ReactRequest is the JSON payload for reacting to a message. Exactly one of
// Tag or Comment must be set: a tag records or replaces the reaction, a
// comment refines an existing not-helpful reaction.
type ReactRequest struct {
	Tag     string `json:"tag,omitempty" example:"helpful"`
	Comment string `json:"comment,omitempty" example:"This missed the point of my question"`
}

// FeedbackResponse wraps the stored reaction.
type FeedbackResponse struct {
	Feedback *domain.Feedback `json:"feedback"`
}

// ListFeedbackResponse carries all reactions for a thread.
type ListFeedbackResponse struct {
	Feedback []domain.Feedback `json:"feedback"`
}

// React godoc
// @ID          reactToMessage
// @Summary     React to an assistant message
// @Description Records a reaction tag for the message at the given index, or
// @Description attaches a comment to an existing not-helpful reaction.
// @Description Reacting again to the same message replaces the earlier
// @Description reaction.
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Param       id     path  string  true  "Thread ID (UUID)"     format(uuid)
// @Param       index  path  int     true  "Message index within the thread"
// @Param       body   body  handlers.ReactRequest  true  "Reaction payload"
// @Success     200  {object}  handlers.FeedbackResponse
// @Failure     400  {object}  handlers.ErrorResponse "Invalid payload or tag"
// @Failure     403  {object}  handlers.ErrorResponse "Not an assistant message"
// @Failure     404  {object}  handlers.ErrorResponse "Thread or message not found"
// @Failure     409  {object}  handlers.ErrorResponse "Comment without not-helpful reaction"
// @Router      /threads/{id}/messages/{index}/feedback [post]
func (h *Handlers) React(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := uuid.Parse(threadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread id must be a UUID")
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message index must be an integer")
		return
	}

	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Tag == "" && req.Comment == "") {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tag or comment required")
		return
	}

	sess := h.session(c)
	var fb *domain.Feedback
	if req.Tag != "" {
		fb, err = h.fbSvc.React(c.Request.Context(), sess, threadID, index, req.Tag)
	} else {
		fb, err = h.fbSvc.Comment(c.Request.Context(), sess, threadID, index, req.Comment)
	}
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidReaction):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid reaction tag")
		case errors.Is(err, services.ErrEmptyPrompt):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "comment must not be empty")
		case errors.Is(err, services.ErrThreadNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		case errors.Is(err, services.ErrMessageNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
		case errors.Is(err, services.ErrForbiddenFeedback):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "cannot leave feedback on this message")
		case errors.Is(err, services.ErrCommentWithoutReaction):
			fail(c, http.StatusConflict, ErrCodeConflict, "comment requires a not-helpful reaction")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, FeedbackResponse{Feedback: fb})
}

// ListFeedback godoc
// @ID          listFeedback
// @Summary     List reactions in a thread
// @Description Returns all reactions for the thread, ordered by message index.
// @Tags        Feedback
// @Produce     json
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.ListFeedbackResponse
// @Failure     404  {object}  handlers.ErrorResponse "Thread not found"
// @Router      /threads/{id}/feedback [get]
func (h *Handlers) ListFeedback(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := uuid.Parse(threadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread id must be a UUID")
		return
	}
	rows, err := h.fbSvc.List(c.Request.Context(), userID(c), threadID)
	if err != nil {
		if errors.Is(err, services.ErrThreadNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListFeedbackResponse{Feedback: rows})
}
