// Thread HTTP handlers.
//
// This file exposes REST endpoints for conversation threads:
//   - POST   /threads                      (create, selects the thread)
//   - GET    /threads                      (list, paginated, ETag support)
//   - GET    /threads/{id}                 (open: load messages into session)
//   - PUT    /threads/{id}/title           (rename)
//   - POST   /threads/{id}/delete-request  (arm two-step deletion)
//   - POST   /threads/{id}/delete-confirm  (complete deletion)
//   - POST   /threads/{id}/delete-cancel   (disarm)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/repo"
	"github.com/animoa/animoa-backend/internal/services"
)

//
// DTOs
//

// CreateThreadRequest is the JSON payload for creating a thread.
type CreateThreadRequest struct {
	// Title optionally names the thread; a timestamped default is used when empty.
	Title string `json:"title" example:"Sleep troubles"`
}

// UpdateThreadTitleRequest is the JSON payload for renaming a thread.
type UpdateThreadTitleRequest struct {
	// Title is the new thread name (1-255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Work stress"`
}

// CreateThreadResponse wraps the created thread. Degraded reports whether the
// thread exists only in memory because storage rejected the insert.
type CreateThreadResponse struct {
	Thread   *domain.Thread `json:"thread"`
	Degraded bool           `json:"degraded,omitempty"`
}

// ListThreadsResponse wraps a page of threads and pagination information.
type ListThreadsResponse struct {
	Threads    []domain.Thread `json:"threads"`
	Pagination Pagination      `json:"pagination"`
}

// OpenThreadResponse carries the loaded conversation.
type OpenThreadResponse struct {
	Thread   *domain.Thread          `json:"thread"`
	Messages []domain.Message        `json:"messages"`
	Feedback map[int]domain.Feedback `json:"feedback"`
}

//
// Handlers
//

// CreateThread godoc
// @ID          createThread
// @Summary     Create a new thread
// @Description Creates a thread for the current user and selects it as the
// @Description session's active thread. When storage is unavailable the
// @Description thread is created in memory only and the response is marked
// @Description degraded.
// @Tags        Threads
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CreateThreadRequest  true  "Create thread payload"
// @Success     201  {object}  handlers.CreateThreadResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /threads [post]
func (h *Handlers) CreateThread(c *gin.Context) {
	var req CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	th, err := h.threadSvc.Create(c.Request.Context(), h.session(c), strings.TrimSpace(req.Title))
	if err != nil && th == nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, CreateThreadResponse{Thread: th, Degraded: err != nil})
}

// ListThreads godoc
// @ID          listThreads
// @Summary     List threads (paginated)
// @Description Returns a page of the user's threads. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Threads
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"      minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"   minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListThreadsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /threads [get]
func (h *Handlers) ListThreads(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.DB != nil {
		count, maxTS, err := repo.ThreadsStats(ctx, h.DB, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"threads:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.threadSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListThreadsResponse{
		Threads:    items,
		Pagination: paginationOf(page, pageSize, total),
	})
}

// OpenThread godoc
// @ID          openThread
// @Summary     Open a thread
// @Description Loads the thread's messages and reactions from storage,
// @Description rebuilds the session caches, and selects it as active.
// @Tags        Threads
// @Produce     json
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.OpenThreadResponse
// @Failure     404  {object}  handlers.ErrorResponse "Thread not found"
// @Router      /threads/{id} [get]
func (h *Handlers) OpenThread(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := uuid.Parse(threadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread id must be a UUID")
		return
	}

	uid := userID(c)
	sess := h.session(c)

	th, err := h.threadSvc.Get(c.Request.Context(), uid, threadID)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	}
	// Load degrades on storage read failures; the only error it surfaces is
	// a missing thread.
	msgs, err := h.msgSvc.Load(c.Request.Context(), sess, threadID)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	}
	ok(c, http.StatusOK, OpenThreadResponse{
		Thread:   th,
		Messages: msgs,
		Feedback: sess.Feedback(),
	})
}

// UpdateThreadTitle godoc
// @ID          updateThreadTitle
// @Summary     Rename a thread
// @Description Updates the title of a thread owned by the current user.
// @Tags        Threads
// @Accept      json
// @Param       id    path  string  true  "Thread ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateThreadTitleRequest  true  "New title"
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Thread not found"
// @Router      /threads/{id}/title [put]
func (h *Handlers) UpdateThreadTitle(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := uuid.Parse(threadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread id must be a UUID")
		return
	}

	var req UpdateThreadTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}

	if err := h.threadSvc.Rename(c.Request.Context(), userID(c), threadID, req.Title); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	}
	noContent(c)
}

// RequestThreadDelete godoc
// @ID          requestThreadDelete
// @Summary     Request thread deletion
// @Description Arms the two-step deletion flow for this thread. A following
// @Description delete-confirm for the same thread completes it; navigating
// @Description elsewhere or delete-cancel disarms it.
// @Tags        Threads
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Thread not found"
// @Router      /threads/{id}/delete-request [post]
func (h *Handlers) RequestThreadDelete(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := uuid.Parse(threadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread id must be a UUID")
		return
	}
	if err := h.threadSvc.RequestDelete(c.Request.Context(), h.session(c), threadID); err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		return
	}
	noContent(c)
}

// ConfirmThreadDelete godoc
// @ID          confirmThreadDelete
// @Summary     Confirm thread deletion
// @Description Completes an armed deletion request. The confirmation must
// @Description name the thread the request was armed for; a mismatch clears
// @Description the stale request and returns 409.
// @Tags        Threads
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Thread not found"
// @Failure     409  {object}  handlers.ErrorResponse "No or stale deletion request"
// @Router      /threads/{id}/delete-confirm [post]
func (h *Handlers) ConfirmThreadDelete(c *gin.Context) {
	threadID := c.Param("id")
	if _, err := uuid.Parse(threadID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "thread id must be a UUID")
		return
	}
	if err := h.threadSvc.ConfirmDelete(c.Request.Context(), h.session(c), threadID); err != nil {
		switch {
		case errors.Is(err, services.ErrNoPendingDelete):
			fail(c, http.StatusConflict, ErrCodeConflict, "no deletion pending")
		case errors.Is(err, services.ErrStaleDeleteConfirm):
			fail(c, http.StatusConflict, ErrCodeConflict, "deletion confirmation is stale")
		case errors.Is(err, services.ErrThreadNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "thread not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// CancelThreadDelete godoc
// @ID          cancelThreadDelete
// @Summary     Cancel thread deletion
// @Description Disarms any pending deletion request in the session.
// @Tags        Threads
// @Param       id  path  string  true  "Thread ID (UUID)"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Router      /threads/{id}/delete-cancel [post]
func (h *Handlers) CancelThreadDelete(c *gin.Context) {
	h.threadSvc.CancelDelete(h.session(c))
	noContent(c)
}
