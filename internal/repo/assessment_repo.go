// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Assessment
// model, including the two-phase write: answers are inserted first and the
// recommendation is back-filled later by a targeted update keyed on the
// assessment id.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// CreateAssessment inserts phase one of an assessment: the serialized answers
// and the used_history flag, with Recommendation left NULL.
func CreateAssessment(ctx context.Context, db *gorm.DB, userID, answersJSON string, usedHistory bool) (*domain.Assessment, error) {
	a := &domain.Assessment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Answers:     answersJSON,
		UsedHistory: usedHistory,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

// SetRecommendation back-fills the recommendation text (phase two) for the
// assessment identified by id and owned by userID. Returns ErrNotFound when
// no matching row exists.
func SetRecommendation(ctx context.Context, db *gorm.DB, id, userID, recommendation string) error {
	res := db.WithContext(ctx).
		Model(&domain.Assessment{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("recommendation", recommendation)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetAssessment fetches a single assessment by id and owner.
func GetAssessment(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Assessment, error) {
	var a domain.Assessment
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssessments returns all assessments for userID, most recent first.
func ListAssessments(ctx context.Context, db *gorm.DB, userID string) ([]domain.Assessment, error) {
	var out []domain.Assessment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// DeleteAssessment removes an assessment owned by userID. Returns ErrNotFound
// when no matching row exists.
func DeleteAssessment(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Unscoped().
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Assessment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
