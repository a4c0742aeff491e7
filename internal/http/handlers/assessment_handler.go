// Assessment HTTP handlers.
//
// This file exposes the wellness questionnaire endpoints:
//   - POST   /assessments              (submit answers, get recommendation)
//   - GET    /assessments              (list past submissions)
//   - GET    /assessments/{id}         (fetch one)
//   - DELETE /assessments/{id}         (remove one)
//   - GET    /assessments/{id}/report  (download the PDF report)
//
// A submission always yields a recommendation: model failures fall back to a
// static template, and storage failures return the result marked degraded.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/pdf"
	"github.com/animoa/animoa-backend/internal/services"
)

// SubmitAssessmentRequest is the JSON payload for a questionnaire submission.
type SubmitAssessmentRequest struct {
	Answers    domain.AssessmentAnswers `json:"answers" binding:"required"`
	UseHistory bool                     `json:"use_history"`
}

// AssessmentResponse wraps one assessment. Degraded reports that the result
// was not durably stored.
type AssessmentResponse struct {
	Assessment *domain.Assessment `json:"assessment"`
	Degraded   bool               `json:"degraded,omitempty"`
}

// ListAssessmentsResponse carries all of the user's submissions.
type ListAssessmentsResponse struct {
	Assessments []domain.Assessment `json:"assessments"`
}

// SubmitAssessment godoc
// @ID          submitAssessment
// @Summary     Submit the wellness questionnaire
// @Description Validates the answers, stores them, and generates a
// @Description personalized recommendation. With use_history set, up to the
// @Description ten most recent messages of the active thread are folded into
// @Description the prompt as context.
// @Tags        Assessments
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SubmitAssessmentRequest  true  "Questionnaire answers"
// @Success     201  {object}  handlers.AssessmentResponse
// @Failure     400  {object}  handlers.ErrorResponse "Incomplete answers"
// @Router      /assessments [post]
func (h *Handlers) SubmitAssessment(c *gin.Context) {
	var req SubmitAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "answers required")
		return
	}

	a, err := h.assessmentSvc.Submit(c.Request.Context(), h.session(c), req.Answers, req.UseHistory)
	if err != nil {
		if errors.Is(err, services.ErrIncompleteAssessment) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "all questionnaire answers are required")
			return
		}
		if a == nil {
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
			return
		}
		// Storage trouble: the recommendation is still usable.
		ok(c, http.StatusCreated, AssessmentResponse{Assessment: a, Degraded: true})
		return
	}
	ok(c, http.StatusCreated, AssessmentResponse{Assessment: a})
}

// ListAssessments godoc
// @ID          listAssessments
// @Summary     List past assessments
// @Tags        Assessments
// @Produce     json
// @Success     200  {object}  handlers.ListAssessmentsResponse
// @Router      /assessments [get]
func (h *Handlers) ListAssessments(c *gin.Context) {
	items, err := h.assessmentSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListAssessmentsResponse{Assessments: items})
}

// GetAssessment godoc
// @ID          getAssessment
// @Summary     Fetch one assessment
// @Tags        Assessments
// @Produce     json
// @Param       id  path  string  true  "Assessment ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.AssessmentResponse
// @Failure     404  {object}  handlers.ErrorResponse "Assessment not found"
// @Router      /assessments/{id} [get]
func (h *Handlers) GetAssessment(c *gin.Context) {
	a, err := h.fetchAssessment(c)
	if err != nil {
		return
	}
	ok(c, http.StatusOK, AssessmentResponse{Assessment: a})
}

// DeleteAssessment godoc
// @ID          deleteAssessment
// @Summary     Delete an assessment
// @Tags        Assessments
// @Param       id  path  string  true  "Assessment ID (UUID)"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse "Assessment not found"
// @Router      /assessments/{id} [delete]
func (h *Handlers) DeleteAssessment(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "assessment id must be a UUID")
		return
	}
	if err := h.assessmentSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		if errors.Is(err, services.ErrAssessmentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "assessment not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// DownloadReport godoc
// @ID          downloadAssessmentReport
// @Summary     Download the wellness report PDF
// @Description Renders the assessment summary and recommendation as a PDF.
// @Description A missing recommendation renders a placeholder section.
// @Tags        Assessments
// @Produce     application/pdf
// @Param       id  path  string  true  "Assessment ID (UUID)"  format(uuid)
// @Success     200  {file}    file "PDF document"
// @Failure     404  {object}  handlers.ErrorResponse "Assessment not found"
// @Failure     500  {object}  handlers.ErrorResponse "Render failure"
// @Router      /assessments/{id}/report [get]
func (h *Handlers) DownloadReport(c *gin.Context) {
	a, err := h.fetchAssessment(c)
	if err != nil {
		return
	}

	var answers domain.AssessmentAnswers
	if err := json.Unmarshal([]byte(a.Answers), &answers); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, "stored answers are unreadable")
		return
	}

	out, err := pdf.RenderWellnessReport(answers, a.Recommendation, time.Now().UTC())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}
	filename := fmt.Sprintf("wellness-report-%s.pdf", a.CreatedAt.Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", out)
}

// fetchAssessment resolves the {id} path param to an assessment owned by the
// caller, writing the error response itself on failure.
func (h *Handlers) fetchAssessment(c *gin.Context) (*domain.Assessment, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "assessment id must be a UUID")
		return nil, err
	}
	a, err := h.assessmentSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrAssessmentNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "assessment not found")
		} else {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return nil, err
	}
	return a, nil
}
