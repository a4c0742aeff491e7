// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules to the services package.
//
// Error semantics:
//   - UpsertFeedback never produces a duplicate row: the unique index on
//     (thread_id, message_index) is honored by updating the existing row
//     in place when one exists.
//   - On DB errors (connectivity, constraints, etc.), the raw gorm error
//     is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// GetFeedback fetches the feedback row for (threadID, messageIndex), or
// ErrNotFound when no reaction has been recorded for that position.
func GetFeedback(ctx context.Context, db *gorm.DB, threadID string, messageIndex int) (*domain.Feedback, error) {
	var fb domain.Feedback
	err := db.WithContext(ctx).
		Where("thread_id = ? AND message_index = ?", threadID, messageIndex).
		First(&fb).Error
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

// UpsertFeedback records a reaction for (threadID, messageIndex). When a row
// already exists it is updated in place (tag, comment, timestamp); otherwise a
// new row is inserted. Exactly one row per position survives either path.
func UpsertFeedback(ctx context.Context, db *gorm.DB, threadID string, messageIndex int, tag, comment string) (*domain.Feedback, error) {
	now := time.Now().UTC()

	var fb domain.Feedback
	err := db.WithContext(ctx).
		Where("thread_id = ? AND message_index = ?", threadID, messageIndex).
		First(&fb).Error
	switch {
	case err == nil:
		fb.Tag = tag
		fb.Comment = comment
		fb.UpdatedAt = now
		if uerr := db.WithContext(ctx).
			Model(&domain.Feedback{}).
			Where("id = ?", fb.ID).
			Updates(map[string]any{"tag": tag, "comment": comment, "updated_at": now}).Error; uerr != nil {
			return nil, uerr
		}
		return &fb, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		fb = domain.Feedback{
			ID:           uuid.NewString(),
			ThreadID:     threadID,
			MessageIndex: messageIndex,
			Tag:          tag,
			Comment:      comment,
			CreatedAt:    now,
		}
		if cerr := db.WithContext(ctx).Create(&fb).Error; cerr != nil {
			return nil, cerr
		}
		return &fb, nil
	default:
		return nil, err
	}
}

// ListFeedback returns all feedback rows for a thread ordered by message index.
func ListFeedback(ctx context.Context, db *gorm.DB, threadID string) ([]domain.Feedback, error) {
	var out []domain.Feedback
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("message_index ASC").
		Find(&out).Error
	return out, err
}
