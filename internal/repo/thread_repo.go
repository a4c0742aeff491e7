// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Thread model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a thread is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateThread inserts a new Thread row owned by userID with the given title.
// The thread ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Thread. On failure, it returns a DB error.
func CreateThread(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Thread, error) {
	t := &domain.Thread{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

// ListThreads returns all threads belonging to userID, ordered by creation
// time descending (most recent first). It returns an empty slice if the user
// has no threads. On DB error, it returns the error.
func ListThreads(ctx context.Context, db *gorm.DB, userID string) ([]domain.Thread, error) {
	var out []domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountThreads returns the total number of threads owned by userID.
// On DB error, it returns the error.
func CountThreads(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListThreadsPage returns a paginated slice of threads for userID, ordered by
// creation time descending. Use CountThreads to obtain the total for
// pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListThreadsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Thread, error) {
	var out []domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetThread fetches a single thread by its ID and owner (userID). If the
// record does not exist, it returns ErrNotFound. On other DB errors, the raw
// error is returned.
func GetThread(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateThreadTitle updates the title of a thread identified by id and owned
// by userID. If no rows are affected (thread missing or not owned by userID),
// it returns ErrNotFound. On DB error, the raw error is returned.
func UpdateThreadTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteThread hard-deletes a thread owned by userID together with its
// messages and feedback, in one transaction. If the thread does not exist or
// is not owned by userID, it returns ErrNotFound.
func DeleteThread(ctx context.Context, db *gorm.DB, id, userID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().
			Where("id = ? AND user_id = ?", id, userID).
			Delete(&domain.Thread{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		// Cascade explicitly: the pure-Go driver does not always enforce
		// FK cascades for soft-deletable children.
		if err := tx.Unscoped().Where("thread_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Where("thread_id = ?", id).Delete(&domain.Feedback{}).Error
	})
}
