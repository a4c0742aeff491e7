// Package services – MoodService
//
// This file implements daily mood tracking. A user records at most one mood
// per calendar day; logging again on the same day replaces the earlier entry.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/repo"
)

// moodDateLayout is the canonical YYYY-MM-DD form used for mood log keys.
const moodDateLayout = "2006-01-02"

// MoodService implements the daily mood log use-cases.
type MoodService struct {
	DB *gorm.DB
}

// Log records a mood for the given date (YYYY-MM-DD; today when blank).
// Logging twice for the same day replaces the earlier entry, keeping the one
// row per user per day invariant.
func (s *MoodService) Log(ctx context.Context, userID, date, mood, note string) (*domain.MoodLog, error) {
	if !domain.ValidMood(mood) {
		return nil, ErrInvalidMood
	}
	date = strings.TrimSpace(date)
	if date == "" {
		date = time.Now().UTC().Format(moodDateLayout)
	} else if _, err := time.Parse(moodDateLayout, date); err != nil {
		return nil, err
	}
	return repo.UpsertMood(ctx, s.DB, userID, date, mood, strings.TrimSpace(note))
}

// Today returns the mood logged for the current day, or nil when none exists.
func (s *MoodService) Today(ctx context.Context, userID string) (*domain.MoodLog, error) {
	m, err := repo.GetMood(ctx, s.DB, userID, time.Now().UTC().Format(moodDateLayout))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// History returns the mood entries of the last days days in chronological
// order. days defaults to 30.
func (s *MoodService) History(ctx context.Context, userID string, days int) ([]domain.MoodLog, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days).Format(moodDateLayout)
	return repo.ListMoods(ctx, s.DB, userID, since)
}
