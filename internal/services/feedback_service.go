// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how users react to
// assistant messages. A reaction is one of a small tag set; reacting again to
// the same message replaces the earlier reaction rather than piling up rows.
// A free-text comment may only be attached to a message that already carries
// a not-helpful reaction.
//
// Business rules (thread ownership, assistant-only restriction, index
// bounds) are enforced here; handlers map the sentinel errors
// (ErrInvalidReaction, ErrForbiddenFeedback, ErrMessageNotFound,
// ErrCommentWithoutReaction) to HTTP results.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/repo"
)

// FeedbackService implements the use-cases around message reactions.
// It validates the operation (ownership, message role, tag validity) and
// persists the reaction using the provided GORM handle.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB *gorm.DB
}

// React records a reaction tag for the message at messageIndex in threadID.
//
// Semantics and validation:
//   - tag must be one of the allowed reaction tags; otherwise ErrInvalidReaction.
//   - threadID must belong to the session user; otherwise ErrThreadNotFound.
//   - messageIndex must reference an assistant message in the thread;
//     user messages and out-of-range indexes yield ErrForbiddenFeedback and
//     ErrMessageNotFound respectively.
//   - A later reaction to the same message replaces the earlier one; there is
//     never more than one feedback row per message position.
//
// On success the session feedback cache is updated in place.
func (s *FeedbackService) React(ctx context.Context, sess *SessionState, threadID string, messageIndex int, tag string) (*domain.Feedback, error) {
	if !domain.ValidTag(tag) {
		return nil, ErrInvalidReaction
	}
	if err := s.checkTarget(ctx, sess, threadID, messageIndex); err != nil {
		return nil, err
	}

	// Replacing a reaction drops any earlier comment; comments belong to the
	// not-helpful tag they were written under.
	fb, err := repo.UpsertFeedback(ctx, s.DB, threadID, messageIndex, tag, "")
	if err != nil {
		return nil, err
	}
	if sess.ActiveThreadID() == threadID {
		sess.SetFeedback(messageIndex, *fb)
	}
	return fb, nil
}

// Comment attaches a free-text note to a message that already carries a
// not-helpful reaction. Comments on unreacted or positively reacted messages
// are rejected with ErrCommentWithoutReaction. A further comment on the same
// message appends to the earlier note rather than replacing it.
func (s *FeedbackService) Comment(ctx context.Context, sess *SessionState, threadID string, messageIndex int, comment string) (*domain.Feedback, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, ErrEmptyPrompt
	}
	if err := s.checkTarget(ctx, sess, threadID, messageIndex); err != nil {
		return nil, err
	}

	existing, err := repo.GetFeedback(ctx, s.DB, threadID, messageIndex)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentWithoutReaction
		}
		return nil, err
	}
	if existing.Tag != domain.TagNotHelpful {
		return nil, ErrCommentWithoutReaction
	}
	if existing.Comment != "" {
		comment = existing.Comment + "\n" + comment
	}

	fb, err := repo.UpsertFeedback(ctx, s.DB, threadID, messageIndex, domain.TagNotHelpful, comment)
	if err != nil {
		return nil, err
	}
	if sess.ActiveThreadID() == threadID {
		sess.SetFeedback(messageIndex, *fb)
	}
	return fb, nil
}

// List returns all reactions recorded for a thread, ordered by message index.
func (s *FeedbackService) List(ctx context.Context, userID, threadID string) ([]domain.Feedback, error) {
	if _, err := repo.GetThread(ctx, s.DB, threadID, userID); err != nil {
		return nil, ErrThreadNotFound
	}
	return repo.ListFeedback(ctx, s.DB, threadID)
}

// checkTarget verifies that threadID belongs to the session user and that
// messageIndex points at an assistant message.
func (s *FeedbackService) checkTarget(ctx context.Context, sess *SessionState, threadID string, messageIndex int) error {
	if _, err := repo.GetThread(ctx, s.DB, threadID, sess.UserID); err != nil {
		return ErrThreadNotFound
	}
	if messageIndex < 0 {
		return ErrMessageNotFound
	}

	// Prefer the session cache for the active thread; fall back to storage.
	var msgs []domain.Message
	if sess.ActiveThreadID() == threadID {
		msgs = sess.Messages()
	} else {
		var err error
		msgs, err = repo.ListMessages(s.DB.WithContext(ctx), threadID, 0)
		if err != nil {
			return err
		}
	}
	if messageIndex >= len(msgs) {
		return ErrMessageNotFound
	}
	if msgs[messageIndex].Role != roleAssistant {
		return ErrForbiddenFeedback
	}
	return nil
}
