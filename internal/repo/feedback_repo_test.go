package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/animoa/animoa-backend/internal/domain"
)

func newFeedbackRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("feedback_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestGetFeedback_NotFoundAndFound(t *testing.T) {
	db := newFeedbackRepoDB(t, &domain.Thread{}, &domain.Feedback{})

	if _, err := GetFeedback(context.Background(), db, "t1", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	fb := domain.Feedback{ID: "f1", ThreadID: "t1", MessageIndex: 1, Tag: domain.TagHelpful}
	if err := db.Create(&fb).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := GetFeedback(context.Background(), db, "t1", 1)
	if err != nil {
		t.Fatalf("GetFeedback: %v", err)
	}
	if got.Tag != domain.TagHelpful {
		t.Fatalf("unexpected feedback: %+v", got)
	}
}

func TestUpsertFeedback_InsertThenUpdateInPlace(t *testing.T) {
	db := newFeedbackRepoDB(t, &domain.Thread{}, &domain.Feedback{})

	// First reaction inserts.
	fb, err := UpsertFeedback(context.Background(), db, "t1", 1, domain.TagHelpful, "")
	if err != nil {
		t.Fatalf("UpsertFeedback insert: %v", err)
	}
	if fb.ID == "" || fb.Tag != domain.TagHelpful {
		t.Fatalf("unexpected insert result: %+v", fb)
	}

	// Changing the reaction updates the same row.
	fb2, err := UpsertFeedback(context.Background(), db, "t1", 1, domain.TagNotHelpful, "too generic")
	if err != nil {
		t.Fatalf("UpsertFeedback update: %v", err)
	}
	if fb2.ID != fb.ID {
		t.Fatalf("update must reuse the existing row: %q vs %q", fb2.ID, fb.ID)
	}
	if fb2.Tag != domain.TagNotHelpful || fb2.Comment != "too generic" {
		t.Fatalf("unexpected update result: %+v", fb2)
	}

	var n int64
	db.Model(&domain.Feedback{}).Where("thread_id = ? AND message_index = ?", "t1", 1).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly 1 row per position, got %d", n)
	}
}

func TestUpsertFeedback_Error_NoTable(t *testing.T) {
	db := newFeedbackRepoDB(t /* no migrations */)
	if _, err := UpsertFeedback(context.Background(), db, "t1", 1, domain.TagHelpful, ""); err == nil {
		t.Fatalf("expected error when table missing")
	}
}

func TestListFeedback_OrderedByMessageIndex(t *testing.T) {
	db := newFeedbackRepoDB(t, &domain.Thread{}, &domain.Feedback{})

	seed := []domain.Feedback{
		{ID: "f3", ThreadID: "t1", MessageIndex: 5, Tag: domain.TagGreat},
		{ID: "f1", ThreadID: "t1", MessageIndex: 1, Tag: domain.TagHelpful},
		{ID: "f2", ThreadID: "t1", MessageIndex: 3, Tag: domain.TagLoved},
		{ID: "fx", ThreadID: "t2", MessageIndex: 1, Tag: domain.TagHelpful},
	}
	for _, fb := range seed {
		if err := db.Create(&fb).Error; err != nil {
			t.Fatalf("seed %s: %v", fb.ID, err)
		}
	}

	list, err := ListFeedback(context.Background(), db, "t1")
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if len(list) != 3 || list[0].MessageIndex != 1 || list[1].MessageIndex != 3 || list[2].MessageIndex != 5 {
		t.Fatalf("unexpected order: %+v", list)
	}
}
