// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the OutboxEntry
// model: durable copies of message writes awaiting persistence. An entry is
// created when a write is enqueued and deleted once the message row lands;
// rows that remain are work still owed to storage.
package repo

import (
	"time"

	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
)

// CreateOutboxEntry records a queued message write. Re-enqueueing the same
// message is a no-op; the existing entry stays authoritative.
func CreateOutboxEntry(db *gorm.DB, id, threadID, role, content string, createdAt time.Time) error {
	e := &domain.OutboxEntry{
		ID:            id,
		ThreadID:      threadID,
		Role:          role,
		Content:       content,
		NextAttemptAt: createdAt,
		CreatedAt:     createdAt,
	}
	if err := db.Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return err
	}
	return nil
}

// MarkOutboxAttempt records one failed delivery attempt: the counter is
// incremented and the failure reason plus the next scheduled attempt time are
// stored on the row.
func MarkOutboxAttempt(db *gorm.DB, id string, nextAt time.Time, lastErr string) error {
	return db.Model(&domain.OutboxEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":        gorm.Expr("attempts + 1"),
			"next_attempt_at": nextAt,
			"last_error":      lastErr,
		}).Error
}

// DeleteOutboxEntry removes the durable copy once the message row is written.
func DeleteOutboxEntry(db *gorm.DB, id string) error {
	return db.Where("id = ?", id).Delete(&domain.OutboxEntry{}).Error
}

// GetOutboxEntry fetches one entry by ID.
func GetOutboxEntry(db *gorm.DB, id string) (*domain.OutboxEntry, error) {
	var e domain.OutboxEntry
	if err := db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListPendingOutboxEntries returns up to limit entries in enqueue order,
// oldest first. Used to reload unfinished work after a restart.
func ListPendingOutboxEntries(db *gorm.DB, limit int) ([]domain.OutboxEntry, error) {
	var out []domain.OutboxEntry
	q := db.Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
