// Package services – ThreadService
//
// This file implements the ThreadService, which manages the lifecycle of
// conversation threads. It validates and normalizes titles, enforces
// ownership rules, and coordinates repository operations for creating,
// listing (with pagination), renaming, and deleting threads. Deletion is a
// two-step flow armed in the session and confirmed in a second call.
//
// Thread creation degrades rather than fails: when storage rejects the
// insert the service hands back an in-memory thread so the conversation can
// continue, and surfaces the storage error alongside it.
//
// Service-level errors (e.g., ErrThreadNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// ThreadRepo defines the repository contract required by ThreadService.
// Implementations are responsible for persistence of thread aggregates.
type ThreadRepo interface {
	// CreateThread inserts a new thread row for the given user.
	CreateThread(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Thread, error)

	// ListThreads returns all threads belonging to the user (non-paginated).
	ListThreads(ctx context.Context, db *gorm.DB, userID string) ([]domain.Thread, error)

	// GetThread fetches a thread by ID ensuring it belongs to the user.
	GetThread(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Thread, error)

	// UpdateThreadTitle updates a thread's title (only if it belongs to the user).
	UpdateThreadTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error

	// CountThreads returns the total number of threads for pagination.
	CountThreads(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListThreadsPage returns a page of threads belonging to the user.
	ListThreadsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Thread, error)

	// DeleteThread removes a thread and its dependent rows.
	DeleteThread(ctx context.Context, db *gorm.DB, id, userID string) error
}

// ThreadService provides thread-level operations such as creating, listing,
// renaming, and the two-step deletion flow. It enforces title rules and
// ownership constraints.
type ThreadService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the thread repository used by this service.
	Repo ThreadRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewThreadService constructs a ThreadService with sane defaults for title
// handling.
func NewThreadService(db *gorm.DB, r ThreadRepo) *ThreadService {
	return &ThreadService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 60,
	}
}

// Create inserts a new thread owned by the session user and selects it as the
// active thread with empty caches. Blank titles default to a timestamped
// placeholder that auto-titling may later replace.
//
// When the insert fails the returned thread is a non-persisted, in-memory
// stand-in with a fresh ID; it is still selected in the session so the user
// can keep chatting, and the storage error is returned alongside it.
func (s *ThreadService) Create(ctx context.Context, sess *SessionState, title string) (*domain.Thread, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultThreadTitle(time.Now().UTC())
	}
	title = s.clip(title)

	th, err := s.Repo.CreateThread(ctx, s.DB, sess.UserID, title)
	if err != nil {
		now := time.Now().UTC()
		th = &domain.Thread{
			ID:        uuid.NewString(),
			UserID:    sess.UserID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		sess.SetActiveThread(th.ID, nil, nil)
		return th, err
	}
	sess.SetActiveThread(th.ID, nil, nil)
	return th, nil
}

// List returns all threads for a user (non-paginated).
// Prefer ListPage for scalability on large datasets.
func (s *ThreadService) List(ctx context.Context, userID string) ([]domain.Thread, error) {
	return s.Repo.ListThreads(ctx, s.DB, userID)
}

// ListPage returns a page of threads for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ThreadService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Thread, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountThreads(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Thread{}, 0, nil
	}

	items, err := s.Repo.ListThreadsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Get fetches a single thread, ensuring it belongs to the user.
func (s *ThreadService) Get(ctx context.Context, userID, threadID string) (*domain.Thread, error) {
	th, err := s.Repo.GetThread(ctx, s.DB, threadID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrThreadNotFound
		}
		return nil, err
	}
	return th, nil
}

// Rename updates a thread's title, ensuring the thread exists and belongs to
// the given user. Falls back to "Untitled" if the title is blank.
func (s *ThreadService) Rename(ctx context.Context, userID, threadID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleUntitled
	}
	if _, err := s.Repo.GetThread(ctx, s.DB, threadID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrThreadNotFound
		}
		return err
	}
	return s.Repo.UpdateThreadTitle(ctx, s.DB, threadID, userID, s.clip(title))
}

// RequestDelete arms a deletion request for threadID in the session. The
// thread must exist and belong to the session user. A later ConfirmDelete
// with the same ID completes the deletion; selecting another thread or
// calling CancelDelete disarms it.
func (s *ThreadService) RequestDelete(ctx context.Context, sess *SessionState, threadID string) error {
	if _, err := s.Repo.GetThread(ctx, s.DB, threadID, sess.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrThreadNotFound
		}
		return err
	}
	sess.ArmDelete(threadID)
	return nil
}

// CancelDelete disarms any pending deletion request in the session.
func (s *ThreadService) CancelDelete(sess *SessionState) {
	sess.DisarmDelete()
}

// ConfirmDelete completes an armed deletion request. The confirmation must
// name the same thread the request was armed for; a mismatch clears the stale
// request and is rejected, so a confirmation can never delete a thread the
// user was no longer looking at. On success the pending request is cleared
// and, if the deleted thread was active, the session caches are dropped.
func (s *ThreadService) ConfirmDelete(ctx context.Context, sess *SessionState, threadID string) error {
	pending := sess.PendingDeleteRequest()
	if pending == nil {
		return ErrNoPendingDelete
	}
	if pending.ThreadID != threadID {
		sess.DisarmDelete()
		return ErrStaleDeleteConfirm
	}

	if err := s.Repo.DeleteThread(ctx, s.DB, threadID, sess.UserID); err != nil {
		sess.DisarmDelete()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrThreadNotFound
		}
		return err
	}

	if sess.ActiveThreadID() == threadID {
		sess.ClearActiveThread()
	} else {
		sess.DisarmDelete()
	}
	return nil
}

// clip truncates a thread title to the configured maximum rune length.
func (s *ThreadService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// defaultThreadTitle builds the placeholder title for a thread created
// without one.
func defaultThreadTitle(t time.Time) string {
	return "Chat " + t.Format("Jan 2, 2006 15:04")
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
