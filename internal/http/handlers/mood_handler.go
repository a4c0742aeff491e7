// Mood tracking HTTP handlers.
//
// Endpoints:
//   - POST /moods       (log or update today's mood)
//   - GET  /moods/today (today's entry, if any)
//   - GET  /moods       (recent history, ?days=N)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/services"
	"github.com/animoa/animoa-backend/internal/utils"
)

// LogMoodRequest is the JSON payload for a mood entry. Date defaults to the
// current UTC day when omitted.
type LogMoodRequest struct {
	Mood string `json:"mood" binding:"required" example:"good"`
	Date string `json:"date,omitempty" example:"2026-08-30"`
	Note string `json:"note,omitempty" example:"Slept well, went for a walk"`
}

// MoodResponse wraps one mood log entry. Entry is null when no mood was
// logged for the requested day.
type MoodResponse struct {
	Entry *domain.MoodLog `json:"entry"`
}

// MoodHistoryResponse carries the recent mood entries, newest first.
type MoodHistoryResponse struct {
	Entries []domain.MoodLog `json:"entries"`
	Days    int              `json:"days"`
}

// LogMood godoc
// @ID          logMood
// @Summary     Log today's mood
// @Description Records a mood for one calendar day. Logging again for the
// @Description same day replaces the earlier entry.
// @Tags        Moods
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LogMoodRequest  true  "Mood entry"
// @Success     200  {object}  handlers.MoodResponse
// @Failure     400  {object}  handlers.ErrorResponse "Unknown mood or malformed date"
// @Router      /moods [post]
func (h *Handlers) LogMood(c *gin.Context) {
	var req LogMoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mood required")
		return
	}
	entry, err := h.moodSvc.Log(c.Request.Context(), userID(c), req.Date, req.Mood, req.Note)
	if err != nil {
		if errors.Is(err, services.ErrInvalidMood) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mood must be one of: great, good, neutral, low, struggling")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	ok(c, http.StatusOK, MoodResponse{Entry: entry})
}

// TodayMood godoc
// @ID          todayMood
// @Summary     Get today's mood entry
// @Tags        Moods
// @Produce     json
// @Success     200  {object}  handlers.MoodResponse
// @Router      /moods/today [get]
func (h *Handlers) TodayMood(c *gin.Context) {
	entry, err := h.moodSvc.Today(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, MoodResponse{Entry: entry})
}

// MoodHistory godoc
// @ID          moodHistory
// @Summary     List recent mood entries
// @Tags        Moods
// @Produce     json
// @Param       days  query  int  false  "Window in days (default 30, max 365)"
// @Success     200  {object}  handlers.MoodHistoryResponse
// @Router      /moods [get]
func (h *Handlers) MoodHistory(c *gin.Context) {
	days := utils.AtoiDefault(c.Query("days"), 30)
	if days < 1 {
		days = 30
	}
	days = utils.ClampInt(days, 1, 365)
	entries, err := h.moodSvc.History(c.Request.Context(), userID(c), days)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, MoodHistoryResponse{Entries: entries, Days: days})
}
