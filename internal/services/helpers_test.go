package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/llm"
	"github.com/animoa/animoa-backend/internal/outbox"
	"github.com/animoa/animoa-backend/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:services_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Profile{}, &domain.Thread{}, &domain.Message{},
		&domain.Feedback{}, &domain.Assessment{}, &domain.MoodLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newSession(userID string) *SessionState {
	return NewSessionStore("en").Get(userID)
}

// fakeLLM is a scripted Completer. It records the last request so tests can
// assert on prompt shape.
type fakeLLM struct {
	reply string
	err   error

	gotMessages []llm.Message
	gotTemp     float64
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.gotMessages = messages
	return f.reply, f.err
}

func (f *fakeLLM) CompleteWithTemperature(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	f.gotMessages = messages
	f.gotTemp = temperature
	return f.reply, f.err
}

// syncOutbox persists enqueued items immediately, standing in for the
// background queue.
type syncOutbox struct {
	db *gorm.DB
}

func (o *syncOutbox) Enqueue(item outbox.Item) {
	_, _ = repo.CreateMessageWithID(o.db, item.MessageID, item.ThreadID, item.Role, item.Content, item.CreatedAt)
}

// threadRepoShim adapts the repository free functions to the ThreadRepo
// interface, mirroring the shim the HTTP layer wires in production.
type threadRepoShim struct{}

func (threadRepoShim) CreateThread(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Thread, error) {
	return repo.CreateThread(ctx, db, userID, title)
}

func (threadRepoShim) ListThreads(ctx context.Context, db *gorm.DB, userID string) ([]domain.Thread, error) {
	return repo.ListThreads(ctx, db, userID)
}

func (threadRepoShim) GetThread(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Thread, error) {
	return repo.GetThread(ctx, db, id, userID)
}

func (threadRepoShim) UpdateThreadTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateThreadTitle(ctx, db, id, userID, title)
}

func (threadRepoShim) CountThreads(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountThreads(ctx, db, userID)
}

func (threadRepoShim) ListThreadsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Thread, error) {
	return repo.ListThreadsPage(ctx, db, userID, offset, limit)
}

func (threadRepoShim) DeleteThread(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteThread(ctx, db, id, userID)
}

func newMessageService(db *gorm.DB, model llm.Completer) *MessageService {
	return &MessageService{
		DB:      db,
		LLM:     model,
		Outbox:  &syncOutbox{db: db},
		Threads: NewThreadService(db, threadRepoShim{}),
	}
}
