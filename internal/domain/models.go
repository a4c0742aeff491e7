// Package domain defines the persistence models for the wellness companion:
// users, conversation threads, messages, per-message feedback, questionnaire
// assessments, mood logs, and profiles. These types are mapped with GORM and
// form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Reaction tags accepted by the feedback tracker. A free-text comment is only
// accepted as a refinement of TagNotHelpful.
const (
	TagHelpful    = "helpful"
	TagThoughtful = "thoughtful"
	TagLoved      = "loved"
	TagGreat      = "great"
	TagNotHelpful = "not-helpful"
)

// Mood values accepted by the mood tracker.
const (
	MoodGreat      = "great"
	MoodGood       = "good"
	MoodNeutral    = "neutral"
	MoodLow        = "low"
	MoodStruggling = "struggling"
)

// User is a registered account. Authentication is password-based; PasswordHash
// holds a bcrypt digest and is never serialized.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: unique login identifier.
//   - PasswordHash: bcrypt digest (excluded from JSON).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID           string    `json:"id"    gorm:"type:char(36);primaryKey"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string    `json:"-"     gorm:"type:varchar(128);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Thread represents one independent conversation owned by a user. Each thread
// has a generated title and contains the messages exchanged between the user
// and the assistant.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the thread owner; indexed for efficient retrieval.
//   - Title: human-readable title (generated from the creation time if empty).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Thread struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"   gorm:"type:varchar(64);not null;index:idx_user_threads"`
	Title     string         `json:"title"     gorm:"type:varchar(255);not null;default:'New conversation'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Thread.
func (Thread) TableName() string { return "threads" }

// Message represents a single utterance within a thread. Messages are
// append-only and ordered by (CreatedAt, ID); they are authored either by the
// "user" or the "assistant".
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ThreadID: foreign key to the owning thread (indexed).
//   - Role: "user" or "assistant" (enforced by DB constraint).
//   - Content: full text content of the message.
//   - Pending: true while the row only exists optimistically and its durable
//     write is still queued in the outbox. Never persisted.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Thread: FK association, ensures cascade delete/update.
type Message struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ThreadID  string         `json:"thread_id" gorm:"type:char(36);not null;index:idx_thread_msgs,priority:1"`
	Role      string         `json:"role"      gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"   gorm:"type:text;not null"`
	Pending   bool           `json:"pending,omitempty" gorm:"-"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_thread_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`

	// Thread is the parent conversation. Messages are cascade-deleted
	// if their thread is removed.
	Thread Thread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// OutboxEntry is the durable copy of one queued message write. The row is
// created when the write is enqueued and deleted once the message row lands,
// so anything left in the table is work still owed to storage. Attempts,
// NextAttemptAt, and LastError track the retry schedule; an exhausted entry
// keeps its row (and its LastError) for later recovery instead of being
// silently discarded.
//
// ID doubles as the message ID so re-delivery after a crash stays idempotent.
type OutboxEntry struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ThreadID      string    `json:"thread_id"       gorm:"type:char(36);not null;index:idx_outbox_thread"`
	Role          string    `json:"role"            gorm:"type:varchar(16);not null"`
	Content       string    `json:"content"         gorm:"type:text;not null"`
	Attempts      int       `json:"attempts"        gorm:"not null;default:0"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	LastError     *string   `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for OutboxEntry.
func (OutboxEntry) TableName() string { return "outbox_entries" }

// Feedback records a user reaction against one message position in one
// thread. At most one active row exists per (thread_id, message_index);
// a later reaction updates the row in place instead of appending a second one.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ThreadID: foreign key to the thread (unique per message index).
//   - MessageIndex: zero-based position of the rated message in the thread.
//   - Tag: one of the Tag* constants.
//   - Comment: optional free-text refinement, only for "not-helpful".
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Thread: FK association, ensures cascade delete/update.
type Feedback struct {
	ID           string         `json:"id"            gorm:"type:char(36);primaryKey"`
	ThreadID     string         `json:"thread_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_thread_index,priority:1"`
	MessageIndex int            `json:"message_index" gorm:"not null;uniqueIndex:ux_feedback_thread_index,priority:2"`
	Tag          string         `json:"tag"           gorm:"type:varchar(16);not null"`
	Comment      string         `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"             gorm:"index"`

	// Thread is the rated conversation. Feedback is cascade-deleted
	// if the thread is removed.
	Thread Thread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }

// AssessmentAnswers holds one completed questionnaire submission. The cadence
// answers (Mood, Interest, Anxiety, Worry) use the screening scale wording
// ("Not at all" … "Nearly every day"); Coping is free text. Language selects
// the recommendation output language (en, es, zh).
type AssessmentAnswers struct {
	Mood     string `json:"mood"`
	Interest string `json:"interest"`
	Anxiety  string `json:"anxiety"`
	Worry    string `json:"worry"`
	Sleep    string `json:"sleep"`
	Support  string `json:"support"`
	Coping   string `json:"coping"`
	Language string `json:"language,omitempty"`
}

// Complete reports whether every questionnaire answer is present. Language is
// optional; it falls back to the session language.
func (a AssessmentAnswers) Complete() bool {
	return a.Mood != "" && a.Interest != "" && a.Anxiety != "" &&
		a.Worry != "" && a.Sleep != "" && a.Support != "" && a.Coping != ""
}

// Assessment is a questionnaire submission plus its generated recommendation.
// The row is written in two phases: answers first, then Recommendation is
// back-filled once the composer returns. A NULL Recommendation means
// "not yet generated", not an error.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner of the submission (indexed).
//   - Answers: questionnaire answers, serialized as JSON.
//   - UsedHistory: whether recent conversation context was included.
//   - Recommendation: composer output, nil until phase two completes.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
type Assessment struct {
	ID             string         `json:"id"       gorm:"type:char(36);primaryKey"`
	UserID         string         `json:"user_id"  gorm:"type:varchar(64);not null;index:idx_user_assessments"`
	Answers        string         `json:"-"        gorm:"type:text;not null"`
	UsedHistory    bool           `json:"used_history"`
	Recommendation *string        `json:"recommendation,omitempty" gorm:"type:text"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Assessment.
func (Assessment) TableName() string { return "assessments" }

// MoodLog is one mood entry per user per calendar day. Re-logging the same day
// updates the existing row (unique index on user_id + date).
type MoodLog struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_mood_user_date,priority:1"`
	Date      string    `json:"date"    gorm:"type:char(10);not null;uniqueIndex:ux_mood_user_date,priority:2"` // YYYY-MM-DD
	Mood      string    `json:"mood"    gorm:"type:varchar(16);not null"`
	Note      string    `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for MoodLog.
func (MoodLog) TableName() string { return "mood_logs" }

// Profile is the per-user wellness profile. One row per user, created empty on
// first access. PreferredLanguage drives the session language and the
// recommendation output language.
type Profile struct {
	UserID            string    `json:"user_id" gorm:"type:char(36);primaryKey"`
	FullName          string    `json:"full_name,omitempty"    gorm:"type:varchar(255)"`
	Age               *int      `json:"age,omitempty"`
	StressLevel       string    `json:"stress_level,omitempty" gorm:"type:varchar(32)"`
	Goals             string    `json:"goals,omitempty"        gorm:"type:text"`
	Interests         string    `json:"interests,omitempty"    gorm:"type:text"`
	PreferredLanguage string    `json:"preferred_language"     gorm:"type:char(2);not null;default:'en'"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// ValidTag reports whether tag is one of the accepted reaction tags.
func ValidTag(tag string) bool {
	switch tag {
	case TagHelpful, TagThoughtful, TagLoved, TagGreat, TagNotHelpful:
		return true
	}
	return false
}

// ValidMood reports whether mood is one of the accepted mood values.
func ValidMood(mood string) bool {
	switch mood {
	case MoodGreat, MoodGood, MoodNeutral, MoodLow, MoodStruggling:
		return true
	}
	return false
}
