package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/llm"
	"github.com/animoa/animoa-backend/internal/repo"
)

func TestAnswerRejectsEmptyPrompt(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "hi"})
	sess := newSession("u1")

	if _, err := svc.Answer(context.Background(), sess, "   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
}

func TestAnswerRejectsTooLongPrompt(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "hi"})
	svc.MaxPromptRunes = 5
	sess := newSession("u1")

	if _, err := svc.Answer(context.Background(), sess, "this is way past the limit"); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestAnswerCreatesThreadAndAppendsPair(t *testing.T) {
	db := newTestDB(t)
	model := &fakeLLM{reply: "Glad you reached out. What has your day been like?"}
	svc := newMessageService(db, model)
	sess := newSession("u1")

	reply, err := svc.Answer(context.Background(), sess, "I feel a bit anxious today")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if reply.Role != "assistant" || reply.Content != model.reply {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if sess.ActiveThreadID() == "" {
		t.Fatal("answering without a thread must create and select one")
	}

	cached := sess.Messages()
	if len(cached) != 2 {
		t.Fatalf("expected user+assistant in cache, got %d", len(cached))
	}
	if cached[0].Role != "user" || cached[1].Role != "assistant" {
		t.Fatalf("unexpected cache order: %s then %s", cached[0].Role, cached[1].Role)
	}

	// The synchronous test outbox persisted both messages.
	stored, err := repo.ListMessages(db, sess.ActiveThreadID(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(stored))
	}
}

func TestAnswerSendsSystemPromptAndHistory(t *testing.T) {
	db := newTestDB(t)
	model := &fakeLLM{reply: "ok"}
	svc := newMessageService(db, model)
	sess := newSession("u1")
	sess.SetLanguage("es")

	if _, err := svc.Answer(context.Background(), sess, "hola"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(model.gotMessages) < 2 {
		t.Fatalf("expected system + user messages, got %d", len(model.gotMessages))
	}
	sys := model.gotMessages[0]
	if sys.Role != llm.RoleSystem || !strings.Contains(sys.Content, "Spanish") {
		t.Fatalf("system prompt must pin the session language: %+v", sys)
	}
	last := model.gotMessages[len(model.gotMessages)-1]
	if last.Role != llm.RoleUser || last.Content != "hola" {
		t.Fatalf("prompt must be the final message: %+v", last)
	}
}

func TestAnswerFallsBackWhenModelFails(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{err: errors.New("model down")})
	sess := newSession("u1")
	sess.SetLanguage("zh")

	reply, err := svc.Answer(context.Background(), sess, "你好")
	if err != nil {
		t.Fatalf("model failure must not fail the turn: %v", err)
	}
	if reply.Content != chatFallback("zh") {
		t.Fatalf("expected canned zh fallback, got %q", reply.Content)
	}
}

func TestAnswerAutoTitlesPlaceholderThread(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	if _, err := svc.Answer(context.Background(), sess, "trouble sleeping at night lately"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	th, err := repo.GetThread(context.Background(), db, sess.ActiveThreadID(), "u1")
	if err != nil {
		t.Fatalf("get thread: %v", err)
	}
	if strings.HasPrefix(th.Title, defaultTitlePrefix) {
		t.Fatalf("placeholder title should have been replaced, got %q", th.Title)
	}
	if !strings.Contains(th.Title, "Sleeping") {
		t.Fatalf("title should derive from the prompt, got %q", th.Title)
	}
}

func TestAnswerKeepsExplicitTitle(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	th, _ := svc.Threads.Create(context.Background(), sess, "My named thread")
	if _, err := svc.Answer(context.Background(), sess, "hello there"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	got, _ := repo.GetThread(context.Background(), db, th.ID, "u1")
	if got.Title != "My named thread" {
		t.Fatalf("explicit title must survive, got %q", got.Title)
	}
}

func TestLoadRebuildsCaches(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	th, _ := svc.Threads.Create(context.Background(), sess, "t")
	if _, err := svc.Answer(context.Background(), sess, "first"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := svc.Answer(context.Background(), sess, "second"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := repo.UpsertFeedback(context.Background(), db, th.ID, 1, domain.TagHelpful, ""); err != nil {
		t.Fatalf("seed feedback: %v", err)
	}

	// Fresh session, as after a restart.
	sess2 := newSession("u1")
	msgs, err := svc.Load(context.Background(), sess2, th.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 chat messages, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.Role != "user" && m.Role != "assistant" {
			t.Fatalf("feedback must not leak into the message list: %q", m.Role)
		}
	}
	fb := sess2.Feedback()
	if len(fb) != 1 || fb[1].Tag != domain.TagHelpful {
		t.Fatalf("feedback cache not rebuilt: %+v", fb)
	}
	if sess2.ActiveThreadID() != th.ID {
		t.Fatal("load must select the thread")
	}
}

func TestLoadDegradesToEmptyStateOnStorageError(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	th, _ := svc.Threads.Create(context.Background(), sess, "t")
	if _, err := svc.Answer(context.Background(), sess, "first"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// Break history reads while keeping the thread row intact.
	if err := db.Exec("ALTER TABLE messages RENAME COLUMN content TO content_x").Error; err != nil {
		t.Fatalf("alter: %v", err)
	}

	sess2 := newSession("u1")
	msgs, err := svc.Load(context.Background(), sess2, th.ID)
	if err != nil {
		t.Fatalf("storage failure must not propagate from load: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected the empty-thread view, got %d messages", len(msgs))
	}
	if sess2.ActiveThreadID() != th.ID {
		t.Fatal("degraded load must still select the thread")
	}
	if len(sess2.Messages()) != 0 || len(sess2.Feedback()) != 0 {
		t.Fatal("degraded load must leave both caches empty")
	}
}

func TestLoadUnknownThread(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	if _, err := svc.Load(context.Background(), sess, "missing"); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestMessageListPage(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	th, _ := svc.Threads.Create(context.Background(), sess, "t")
	for i := 0; i < 3; i++ {
		if _, err := svc.Answer(context.Background(), sess, "prompt"); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	items, total, err := svc.ListPage(context.Background(), "u1", th.ID, 1, 4)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if total != 6 || len(items) != 4 {
		t.Fatalf("expected total 6 / page 4, got %d / %d", total, len(items))
	}

	if _, _, err := svc.ListPage(context.Background(), "u1", "missing", 1, 4); !errors.Is(err, ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestRecentHistoryWindow(t *testing.T) {
	db := newTestDB(t)
	svc := newMessageService(db, &fakeLLM{reply: "ok"})
	sess := newSession("u1")

	th, _ := svc.Threads.Create(context.Background(), sess, "t")
	for i := 0; i < 8; i++ {
		if _, err := svc.Answer(context.Background(), sess, "prompt"); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}

	hist, err := svc.RecentHistory(context.Background(), th.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 10 {
		t.Fatalf("expected the 10 most recent of 16, got %d", len(hist))
	}
	// Chronological: an older message never follows a newer one.
	if hist[len(hist)-1].Role != "assistant" {
		t.Fatalf("latest message should be the assistant reply, got %s", hist[len(hist)-1].Role)
	}
}
