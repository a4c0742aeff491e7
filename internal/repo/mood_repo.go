// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the MoodLog
// model. One row per (user, day); re-logging the same day updates in place.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// UpsertMood records a mood for userID on date (YYYY-MM-DD). An existing entry
// for that day is updated; otherwise a new row is inserted.
func UpsertMood(ctx context.Context, db *gorm.DB, userID, date, mood, note string) (*domain.MoodLog, error) {
	now := time.Now().UTC()

	var m domain.MoodLog
	err := db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&m).Error
	switch {
	case err == nil:
		m.Mood = mood
		m.Note = note
		m.UpdatedAt = now
		if uerr := db.WithContext(ctx).
			Model(&domain.MoodLog{}).
			Where("id = ?", m.ID).
			Updates(map[string]any{"mood": mood, "note": note, "updated_at": now}).Error; uerr != nil {
			return nil, uerr
		}
		return &m, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		m = domain.MoodLog{
			ID:        uuid.NewString(),
			UserID:    userID,
			Date:      date,
			Mood:      mood,
			Note:      note,
			CreatedAt: now,
		}
		if cerr := db.WithContext(ctx).Create(&m).Error; cerr != nil {
			return nil, cerr
		}
		return &m, nil
	default:
		return nil, err
	}
}

// GetMood fetches the mood entry for userID on date, or ErrNotFound.
func GetMood(ctx context.Context, db *gorm.DB, userID, date string) (*domain.MoodLog, error) {
	var m domain.MoodLog
	err := db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMoods returns mood entries for userID with date >= since, oldest first.
func ListMoods(ctx context.Context, db *gorm.DB, userID, since string) ([]domain.MoodLog, error) {
	var out []domain.MoodLog
	err := db.WithContext(ctx).
		Where("user_id = ? AND date >= ?", userID, since).
		Order("date asc").
		Find(&out).Error
	return out, err
}
