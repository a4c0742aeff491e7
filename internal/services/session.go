// Package services – SessionStore
//
// This file implements the in-memory per-user session state that the HTTP
// layer threads through thread, message, and feedback operations. A session
// tracks the active thread, the message cache for that thread (including
// optimistic entries not yet confirmed by storage), the feedback cache keyed
// by message index, and an optional pending thread-deletion request.
//
// Sessions are an explicit collaborator: every service method that needs
// session state receives a *SessionState, never reaches for a global.
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/animoa/animoa-backend/internal/domain"
)

// PendingDelete records an armed thread-deletion request awaiting a second
// confirmation step.
type PendingDelete struct {
	ThreadID    string
	RequestedAt time.Time
}

// SessionState holds the per-user conversational state. All exported methods
// are safe for concurrent use.
type SessionState struct {
	mu sync.Mutex

	// UserID owns this session. Immutable after creation.
	UserID string

	language       string
	activeThreadID string
	messages       []domain.Message
	feedback       map[int]domain.Feedback
	pendingDelete  *PendingDelete
}

// Language returns the session's resolved UI language code (en, es, zh).
func (s *SessionState) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage updates the session language. The code must already be
// normalized; callers go through NormalizeLanguage.
func (s *SessionState) SetLanguage(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = code
}

// ActiveThreadID returns the currently selected thread, or "" when none.
func (s *SessionState) ActiveThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThreadID
}

// SetActiveThread replaces the active thread and both caches in one step.
// Selecting a thread also clears any pending deletion request; navigating
// away from the confirmation prompt disarms it.
func (s *SessionState) SetActiveThread(threadID string, msgs []domain.Message, fb map[int]domain.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeThreadID = threadID
	s.messages = msgs
	if fb == nil {
		fb = make(map[int]domain.Feedback)
	}
	s.feedback = fb
	s.pendingDelete = nil
}

// ClearActiveThread drops the active thread and its caches, keeping the
// session itself alive.
func (s *SessionState) ClearActiveThread() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeThreadID = ""
	s.messages = nil
	s.feedback = make(map[int]domain.Feedback)
	s.pendingDelete = nil
}

// Messages returns a copy of the cached messages for the active thread, in
// append order.
func (s *SessionState) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// AppendMessage adds a message to the cache and returns its index within the
// thread.
func (s *SessionState) AppendMessage(m domain.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return len(s.messages) - 1
}

// MarkPersisted clears the pending flag on the cached message with the given
// ID. Called by the outbox once the write lands.
func (s *SessionState) MarkPersisted(threadID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeThreadID != threadID {
		return
	}
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Pending = false
			return
		}
	}
}

// Feedback returns a copy of the feedback cache keyed by message index.
func (s *SessionState) Feedback() map[int]domain.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]domain.Feedback, len(s.feedback))
	for k, v := range s.feedback {
		out[k] = v
	}
	return out
}

// SetFeedback records or replaces the cached feedback for a message index.
func (s *SessionState) SetFeedback(index int, fb domain.Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedback == nil {
		s.feedback = make(map[int]domain.Feedback)
	}
	s.feedback[index] = fb
}

// ArmDelete arms a deletion request for threadID, replacing any earlier one.
func (s *SessionState) ArmDelete(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = &PendingDelete{ThreadID: threadID, RequestedAt: time.Now().UTC()}
}

// PendingDelete returns the armed deletion request, or nil.
func (s *SessionState) PendingDeleteRequest() *PendingDelete {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingDelete == nil {
		return nil
	}
	cp := *s.pendingDelete
	return &cp
}

// DisarmDelete clears any pending deletion request.
func (s *SessionState) DisarmDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = nil
}

// SessionStore owns the live sessions, one per user.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*SessionState

	// DefaultLanguage seeds new sessions when no stored preference is found.
	DefaultLanguage string

	// ProfileLanguage, when set, resolves the user's stored language
	// preference. New sessions seed from it so a returning user keeps their
	// language across sign-out and restarts; any lookup failure falls back
	// to DefaultLanguage.
	ProfileLanguage func(ctx context.Context, userID string) (string, error)
}

// NewSessionStore constructs an empty store.
func NewSessionStore(defaultLanguage string) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*SessionState),
		DefaultLanguage: NormalizeLanguage(defaultLanguage),
	}
}

// Initialize returns the session for userID, creating it on first use.
// Creation is idempotent: repeated calls return the same state and never
// reset caches or re-seed the language. A new session starts in the user's
// stored preferred language when the profile lookup succeeds, otherwise in
// the store default.
func (st *SessionStore) Initialize(ctx context.Context, userID string) *SessionState {
	st.mu.Lock()
	if s, ok := st.sessions[userID]; ok {
		st.mu.Unlock()
		return s
	}
	st.mu.Unlock()

	// Resolve the seed language outside the lock; the lookup may hit storage.
	lang := st.DefaultLanguage
	if st.ProfileLanguage != nil {
		if code, err := st.ProfileLanguage(ctx, userID); err == nil && code != "" {
			lang = NormalizeLanguage(code)
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[userID]; ok {
		return s
	}
	s := &SessionState{
		UserID:   userID,
		language: lang,
		feedback: make(map[int]domain.Feedback),
	}
	st.sessions[userID] = s
	return s
}

// Get is Initialize without a caller context.
func (st *SessionStore) Get(userID string) *SessionState {
	return st.Initialize(context.Background(), userID)
}

// MarkPersisted clears the pending flag across all live sessions. Only the
// session currently viewing threadID actually changes; the rest no-op.
func (st *SessionStore) MarkPersisted(threadID, messageID string) {
	st.mu.Lock()
	sessions := make([]*SessionState, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.mu.Unlock()
	for _, s := range sessions {
		s.MarkPersisted(threadID, messageID)
	}
}

// Clear removes the session for userID, if any. Used on sign-out.
func (st *SessionStore) Clear(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}

// supportedLanguages lists the UI languages in matcher order. The first entry
// is the fallback for unrecognized input.
var supportedLanguages = []language.Tag{
	language.English,
	language.Spanish,
	language.Chinese,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

var languageCodes = [...]string{"en", "es", "zh"}

// NormalizeLanguage resolves an arbitrary language code or name to one of the
// supported two-letter codes, defaulting to English.
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "en"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "en"
	}
	_, idx, _ := languageMatcher.Match(tag)
	return languageCodes[idx]
}
