// Package services – ProfileService
//
// This file implements the per-user wellness profile. Profiles are created
// lazily as empty rows on first access; updates validate the age range and
// resolve the preferred language to a supported code. Changing the preferred
// language also retargets the live session so subsequent replies switch
// language immediately.
package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/repo"
)

// Age bounds accepted on profile updates.
const (
	minProfileAge = 13
	maxProfileAge = 120
)

// ProfileUpdate carries the editable profile fields. Nil Age clears the
// stored value.
type ProfileUpdate struct {
	FullName    string
	Age         *int
	StressLevel string
	Goals       string
	Interests   string
	Language    string
}

// ProfileService implements profile reads and updates.
type ProfileService struct {
	DB *gorm.DB
}

// Get returns the profile for userID, creating an empty one on first access.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	return repo.EnsureProfile(ctx, s.DB, userID)
}

// ProfileLanguageLookup returns a SessionStore.ProfileLanguage resolver that
// reads the stored preferred language, creating the profile row on first
// access like Get does.
func ProfileLanguageLookup(db *gorm.DB) func(ctx context.Context, userID string) (string, error) {
	return func(ctx context.Context, userID string) (string, error) {
		p, err := repo.EnsureProfile(ctx, db, userID)
		if err != nil {
			return "", err
		}
		return p.PreferredLanguage, nil
	}
}

// Update validates and stores the editable profile fields, then points the
// session at the (possibly new) preferred language.
func (s *ProfileService) Update(ctx context.Context, sess *SessionState, upd ProfileUpdate) (*domain.Profile, error) {
	if upd.Age != nil && (*upd.Age < minProfileAge || *upd.Age > maxProfileAge) {
		return nil, ErrInvalidAge
	}

	lang := strings.TrimSpace(upd.Language)
	if lang != "" {
		norm := NormalizeLanguage(lang)
		// NormalizeLanguage falls back to English; reject input that only
		// matched through the fallback.
		if norm == "en" && !strings.HasPrefix(strings.ToLower(lang), "en") {
			return nil, ErrInvalidLanguage
		}
		lang = norm
	}

	p, err := repo.EnsureProfile(ctx, s.DB, sess.UserID)
	if err != nil {
		return nil, err
	}

	p.FullName = strings.TrimSpace(upd.FullName)
	p.Age = upd.Age
	p.StressLevel = strings.TrimSpace(upd.StressLevel)
	p.Goals = strings.TrimSpace(upd.Goals)
	p.Interests = strings.TrimSpace(upd.Interests)
	if lang != "" {
		p.PreferredLanguage = lang
	}

	if err := repo.UpdateProfile(ctx, s.DB, p); err != nil {
		return nil, err
	}

	sess.SetLanguage(p.PreferredLanguage)
	return p, nil
}
