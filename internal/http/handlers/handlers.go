// Handler wiring.
//
// This file declares the service contracts consumed by the HTTP layer and the
// Handlers aggregate that binds them. Handlers are transport-thin: they
// validate input, resolve the caller's session, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/auth"
	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/services"
	"github.com/animoa/animoa-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ThreadService defines thread lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ThreadService interface {
	// Create starts a new thread and selects it in the session. A non-nil
	// thread alongside an error means creation ran degraded.
	Create(ctx context.Context, sess *services.SessionState, title string) (*domain.Thread, error)
	// ListPage returns a page of threads for a user and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Thread, int64, error)
	// Get fetches one thread owned by userID.
	Get(ctx context.Context, userID, threadID string) (*domain.Thread, error)
	// Rename renames a thread that belongs to userID.
	Rename(ctx context.Context, userID, threadID, title string) error
	// RequestDelete arms the two-step deletion flow.
	RequestDelete(ctx context.Context, sess *services.SessionState, threadID string) error
	// CancelDelete disarms a pending deletion request.
	CancelDelete(sess *services.SessionState)
	// ConfirmDelete completes an armed deletion request.
	ConfirmDelete(ctx context.Context, sess *services.SessionState, threadID string) error
}

// MessageService defines message retrieval and generation operations.
type MessageService interface {
	// Answer appends a user prompt and returns the assistant reply.
	Answer(ctx context.Context, sess *services.SessionState, prompt string) (*domain.Message, error)
	// Load selects a thread and rebuilds the session caches from storage.
	Load(ctx context.Context, sess *services.SessionState, threadID string) ([]domain.Message, error)
	// ListPage returns a page of messages within a thread and the total count.
	ListPage(ctx context.Context, userID, threadID string, page, pageSize int) ([]domain.Message, int64, error)
}

// FeedbackService defines operations to capture reactions on messages.
type FeedbackService interface {
	// React records a reaction tag for the message at messageIndex.
	React(ctx context.Context, sess *services.SessionState, threadID string, messageIndex int, tag string) (*domain.Feedback, error)
	// Comment refines a not-helpful reaction with free text.
	Comment(ctx context.Context, sess *services.SessionState, threadID string, messageIndex int, comment string) (*domain.Feedback, error)
	// List returns all reactions for a thread ordered by message index.
	List(ctx context.Context, userID, threadID string) ([]domain.Feedback, error)
}

// AssessmentService defines the questionnaire and recommendation operations.
type AssessmentService interface {
	Submit(ctx context.Context, sess *services.SessionState, answers domain.AssessmentAnswers, useHistory bool) (*domain.Assessment, error)
	Get(ctx context.Context, userID, id string) (*domain.Assessment, error)
	List(ctx context.Context, userID string) ([]domain.Assessment, error)
	Delete(ctx context.Context, userID, id string) error
}

// MoodService defines the daily mood log operations.
type MoodService interface {
	Log(ctx context.Context, userID, date, mood, note string) (*domain.MoodLog, error)
	Today(ctx context.Context, userID string) (*domain.MoodLog, error)
	History(ctx context.Context, userID string, days int) ([]domain.MoodLog, error)
}

// ProfileService defines profile reads and updates.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, sess *services.SessionState, upd services.ProfileUpdate) (*domain.Profile, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic; DB is
// only used for cheap ETag stats and idempotency records.
type Handlers struct {
	DB       *gorm.DB
	Sessions *services.SessionStore
	Auth     *auth.Service

	threadSvc     ThreadService
	msgSvc        MessageService
	fbSvc         FeedbackService
	assessmentSvc AssessmentService
	moodSvc       MoodService
	profileSvc    ProfileService
}

// New constructs a Handlers instance bound to the given services.
func New(
	db *gorm.DB,
	sessions *services.SessionStore,
	authSvc *auth.Service,
	threadSvc ThreadService,
	msgSvc MessageService,
	fbSvc FeedbackService,
	assessmentSvc AssessmentService,
	moodSvc MoodService,
	profileSvc ProfileService,
) *Handlers {
	return &Handlers{
		DB:            db,
		Sessions:      sessions,
		Auth:          authSvc,
		threadSvc:     threadSvc,
		msgSvc:        msgSvc,
		fbSvc:         fbSvc,
		assessmentSvc: assessmentSvc,
		moodSvc:       moodSvc,
		profileSvc:    profileSvc,
	}
}

// userID extracts the authenticated user id from Gin context (set by the auth
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// session resolves the caller's session state, creating it on first use. New
// sessions pick up the stored language preference through the store's
// profile lookup.
func (h *Handlers) session(c *gin.Context) *services.SessionState {
	ctx := context.Background()
	if c != nil && c.Request != nil {
		ctx = c.Request.Context()
	}
	return h.Sessions.Initialize(ctx, userID(c))
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// paginationOf builds the metadata block for a page of total items.
func paginationOf(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}
