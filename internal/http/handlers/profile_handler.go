// Profile HTTP handlers.
//
// Endpoints:
//   - GET /profile (fetch, lazily created on first access)
//   - PUT /profile (partial update)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/services"
)

// UpdateProfileRequest is the JSON payload for a profile update. Every field
// is optional; omitted fields keep their stored value.
type UpdateProfileRequest struct {
	FullName    *string `json:"full_name,omitempty" example:"Ana García"`
	Age         *int    `json:"age,omitempty" example:"29"`
	StressLevel *string `json:"stress_level,omitempty" example:"moderate"`
	Goals       *string `json:"goals,omitempty" example:"Sleep better, manage work stress"`
	Interests   *string `json:"interests,omitempty" example:"yoga, reading"`
	Language    *string `json:"language,omitempty" example:"es"`
}

// ProfileResponse wraps the user profile.
type ProfileResponse struct {
	Profile *domain.Profile `json:"profile"`
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get the user profile
// @Description Returns the caller's profile, creating an empty one on first
// @Description access.
// @Tags        Profile
// @Produce     json
// @Success     200  {object}  handlers.ProfileResponse
// @Router      /profile [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profileSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, ProfileResponse{Profile: p})
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the user profile
// @Description Applies a partial update. Changing the language also switches
// @Description the active session language.
// @Tags        Profile
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.UpdateProfileRequest  true  "Profile fields to update"
// @Success     200  {object}  handlers.ProfileResponse
// @Failure     400  {object}  handlers.ErrorResponse "Age out of range or unsupported language"
// @Router      /profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Carry stored values forward for omitted fields.
	current, err := h.profileSvc.Get(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	upd := services.ProfileUpdate{
		FullName:    current.FullName,
		Age:         current.Age,
		StressLevel: current.StressLevel,
		Goals:       current.Goals,
		Interests:   current.Interests,
	}
	if req.FullName != nil {
		upd.FullName = *req.FullName
	}
	if req.Age != nil {
		upd.Age = req.Age
	}
	if req.StressLevel != nil {
		upd.StressLevel = *req.StressLevel
	}
	if req.Goals != nil {
		upd.Goals = *req.Goals
	}
	if req.Interests != nil {
		upd.Interests = *req.Interests
	}
	if req.Language != nil {
		upd.Language = *req.Language
	}

	p, err := h.profileSvc.Update(c.Request.Context(), h.session(c), upd)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAge):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "age must be between 13 and 120")
		case errors.Is(err, services.ErrInvalidLanguage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "language must be one of: en, es, zh")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ProfileResponse{Profile: p})
}
