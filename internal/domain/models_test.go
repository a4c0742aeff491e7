package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(User{}).TableName():       "users",
		(Thread{}).TableName():     "threads",
		(Message{}).TableName():    "messages",
		(Feedback{}).TableName():   "feedback",
		(Assessment{}).TableName(): "assessments",
		(MoodLog{}).TableName():    "mood_logs",
		(Profile{}).TableName():    "profiles",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestValidTag(t *testing.T) {
	for _, tag := range []string{TagHelpful, TagThoughtful, TagLoved, TagGreat, TagNotHelpful} {
		if !ValidTag(tag) {
			t.Fatalf("ValidTag(%q) = false; want true", tag)
		}
	}
	for _, tag := range []string{"", "meh", "HELPFUL", "not_helpful"} {
		if ValidTag(tag) {
			t.Fatalf("ValidTag(%q) = true; want false", tag)
		}
	}
}

func TestValidMood(t *testing.T) {
	for _, mood := range []string{MoodGreat, MoodGood, MoodNeutral, MoodLow, MoodStruggling} {
		if !ValidMood(mood) {
			t.Fatalf("ValidMood(%q) = false; want true", mood)
		}
	}
	for _, mood := range []string{"", "okay", "GOOD", "terrible"} {
		if ValidMood(mood) {
			t.Fatalf("ValidMood(%q) = true; want false", mood)
		}
	}
}

func TestAssessmentAnswers_Complete(t *testing.T) {
	full := AssessmentAnswers{
		Mood:     "Several days",
		Interest: "Not at all",
		Anxiety:  "Several days",
		Worry:    "Not at all",
		Sleep:    "Most nights",
		Support:  "Family",
		Coping:   "Walks",
	}
	if !full.Complete() {
		t.Fatalf("expected complete answers to report Complete() = true")
	}
	// Language is optional.
	full.Language = ""
	if !full.Complete() {
		t.Fatalf("Language must not affect completeness")
	}

	partial := full
	partial.Coping = ""
	if partial.Complete() {
		t.Fatalf("expected missing coping answer to report Complete() = false")
	}
	if (AssessmentAnswers{}).Complete() {
		t.Fatalf("empty answers must not be complete")
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&User{}, &Profile{}, &Thread{}, &Message{}, &Feedback{}, &Assessment{}, &MoodLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	// Tables exist
	for _, tbl := range []any{&User{}, &Profile{}, &Thread{}, &Message{}, &Feedback{}, &Assessment{}, &MoodLog{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	// Indexes from tags exist
	if !m.HasIndex(&Thread{}, "idx_user_threads") {
		t.Fatalf("expected index idx_user_threads on threads")
	}
	if !m.HasIndex(&Message{}, "idx_thread_msgs") {
		t.Fatalf("expected index idx_thread_msgs on messages")
	}
	if !m.HasIndex(&Feedback{}, "ux_feedback_thread_index") {
		t.Fatalf("expected unique index ux_feedback_thread_index on feedback")
	}
	if !m.HasIndex(&MoodLog{}, "ux_mood_user_date") {
		t.Fatalf("expected unique index ux_mood_user_date on mood_logs")
	}
	if !m.HasIndex(&User{}, "ux_users_email") {
		t.Fatalf("expected unique index ux_users_email on users")
	}

	// Seed a thread, two messages, and a feedback tied to the thread
	now := time.Now().UTC()

	th := &Thread{ID: "t1", UserID: "u1", Title: "T", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(th).Error; err != nil {
		t.Fatalf("insert thread: %v", err)
	}

	m1 := &Message{ID: "m1", ThreadID: "t1", Role: "user", Content: "hello", CreatedAt: now, UpdatedAt: now}
	m2 := &Message{ID: "m2", ThreadID: "t1", Role: "assistant", Content: "world", CreatedAt: now.Add(time.Second), UpdatedAt: now.Add(time.Second)}
	if err := db.Create(m1).Error; err != nil {
		t.Fatalf("insert m1: %v", err)
	}
	if err := db.Create(m2).Error; err != nil {
		t.Fatalf("insert m2: %v", err)
	}

	fb := &Feedback{ID: "f1", ThreadID: "t1", MessageIndex: 1, Tag: TagHelpful, CreatedAt: now, UpdatedAt: now}
	if err := db.Create(fb).Error; err != nil {
		t.Fatalf("insert feedback: %v", err)
	}

	// CASCADE: deleting the thread should delete its messages and feedback
	if err := db.Unscoped().Delete(&Thread{}, "id = ?", "t1").Error; err != nil {
		t.Fatalf("delete thread: %v", err)
	}
	var cnt int64
	if err := db.Model(&Message{}).Where("thread_id = ?", "t1").Count(&cnt).Error; err != nil {
		t.Fatalf("count messages after thread delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete when thread deleted, got count=%d", cnt)
	}
	if err := db.Model(&Feedback{}).Where("thread_id = ?", "t1").Count(&cnt).Error; err != nil {
		t.Fatalf("count feedback after thread delete: %v", err)
	}
	if cnt != 0 {
		t.Fatalf("expected feedback to cascade-delete when thread deleted, got count=%d", cnt)
	}
}
