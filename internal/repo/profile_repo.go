// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Profile and
// User models.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// CreateUser inserts a new user row. The email must be unique; a violation
// propagates as the raw DB error for the service layer to translate.
func CreateUser(ctx context.Context, db *gorm.DB, email, passwordHash string) (*domain.User, error) {
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByEmail fetches a user by email, or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureProfile returns the profile for userID, creating an empty row with the
// default language when none exists yet.
func EnsureProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	switch {
	case err == nil:
		return &p, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		p = domain.Profile{
			UserID:            userID,
			PreferredLanguage: "en",
			CreatedAt:         time.Now().UTC(),
		}
		if cerr := db.WithContext(ctx).Create(&p).Error; cerr != nil {
			return nil, cerr
		}
		return &p, nil
	default:
		return nil, err
	}
}

// UpdateProfile overwrites the editable profile fields for userID.
// Returns ErrNotFound when the profile row does not exist.
func UpdateProfile(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("user_id = ?", p.UserID).
		Updates(map[string]any{
			"full_name":          p.FullName,
			"age":                p.Age,
			"stress_level":       p.StressLevel,
			"goals":              p.Goals,
			"interests":          p.Interests,
			"preferred_language": p.PreferredLanguage,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
