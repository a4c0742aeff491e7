// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the lifecycle of chat messages and assistant replies. It validates
// inputs, appends the user message optimistically to the session cache,
// hands persistence to the outbox, and calls the configured language model
// for a reply. A model failure never fails the turn: the user gets an
// apologetic reply in the session language instead.
//
// Optional enhancement: it also auto-generates a thread title from the first
// user prompt when the thread still has a default/placeholder title.
//
// Observability: the main entry points are OpenTelemetry-instrumented; spans
// include thread/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/llm"
	"github.com/animoa/animoa-backend/internal/outbox"
	"github.com/animoa/animoa-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"

	// default titles we consider placeholders eligible for auto-generation
	defaultTitlePrefix   = "Chat "
	defaultTitleUntitled = "Untitled"
)

// MessageEnqueuer hands message writes to the background persistence queue.
type MessageEnqueuer interface {
	Enqueue(item outbox.Item)
}

// MessageService coordinates optimistic message appends, model replies, and
// thread history loading.
type MessageService struct {
	DB      *gorm.DB
	LLM     llm.Completer
	Outbox  MessageEnqueuer
	Threads *ThreadService

	// Optional guards
	MaxPromptRunes int
	MaxReplyRunes  int

	// HistoryWindow caps how many cached messages are sent to the model.
	HistoryWindow int

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int
}

// Answer validates the prompt, ensures an active thread (creating one when
// the session has none), appends the user message optimistically, asks the
// model for a reply, and appends that too. Both messages are queued for
// persistence through the outbox and carry Pending until the writes land.
//
// The returned message is the assistant reply. Model errors are absorbed:
// the reply becomes a fixed apologetic message in the session language.
func (s *MessageService) Answer(ctx context.Context, sess *SessionState, prompt string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("user.id", sess.UserID),
			attribute.String("thread.id", sess.ActiveThreadID()),
		),
	)
	defer span.End()

	// Normalize & validate prompt
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	// Ensure an active thread. Creation may run degraded; the conversation
	// continues either way.
	threadID := sess.ActiveThreadID()
	if threadID == "" {
		th, _ := s.Threads.Create(ctx, sess, "")
		threadID = th.ID
	}

	// Optimistic user message; storage catches up via the outbox.
	now := time.Now().UTC()
	userMsg := domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      roleUser,
		Content:   prompt,
		CreatedAt: now,
		Pending:   true,
	}
	sess.AppendMessage(userMsg)
	s.enqueue(userMsg)

	reply := s.complete(ctx, sess)

	assistantMsg := domain.Message{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Role:      roleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
		Pending:   true,
	}
	sess.AppendMessage(assistantMsg)
	s.enqueue(assistantMsg)

	s.maybeAutoTitle(ctx, sess.UserID, threadID, prompt)

	return &assistantMsg, nil
}

// Load fetches a thread's messages and feedback from storage, rebuilds both
// session caches, and selects the thread as active. Feedback rows are keyed
// by the message index they refer to; chat messages and feedback never mix
// in the returned slice.
//
// Only a missing thread is an error. A storage failure while reading the
// history selects the thread with empty caches instead, so the user lands on
// a fresh-looking conversation rather than an error page.
func (s *MessageService) Load(ctx context.Context, sess *SessionState, threadID string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Load",
		trace.WithAttributes(
			attribute.String("user.id", sess.UserID),
			attribute.String("thread.id", threadID),
		),
	)
	defer span.End()

	if _, err := repo.GetThread(ctx, s.DB, threadID, sess.UserID); err != nil {
		return nil, ErrThreadNotFound
	}

	msgs, err := repo.ListMessages(s.DB.WithContext(ctx), threadID, 0)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).
			Msg("loading messages failed, showing empty thread")
		msgs = []domain.Message{}
		sess.SetActiveThread(threadID, msgs, nil)
		return msgs, nil
	}

	fb := make(map[int]domain.Feedback)
	if fbRows, err := repo.ListFeedback(ctx, s.DB, threadID); err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).
			Msg("loading feedback failed, showing thread without reactions")
	} else {
		for _, r := range fbRows {
			fb[r.MessageIndex] = r
		}
	}

	sess.SetActiveThread(threadID, msgs, fb)
	return msgs, nil
}

// ListPage returns paginated messages for a thread owned by userID.
func (s *MessageService) ListPage(ctx context.Context, userID, threadID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetThread(ctx, s.DB, threadID, userID); err != nil {
		return nil, 0, ErrThreadNotFound
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), threadID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), threadID, offset, pageSize)
	return items, total, err
}

// RecentHistory returns up to limit of the thread's most recent messages in
// chronological order, shaped for the model. Used by the assessment flow.
func (s *MessageService) RecentHistory(ctx context.Context, threadID string, limit int) ([]llm.Message, error) {
	if limit <= 0 {
		limit = 10
	}
	msgs, err := repo.ListRecentMessages(s.DB.WithContext(ctx), threadID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

// complete asks the model for a reply over the session's recent history,
// falling back to a canned apology on any failure.
func (s *MessageService) complete(ctx context.Context, sess *SessionState) string {
	window := s.HistoryWindow
	if window <= 0 {
		window = 10
	}

	cached := sess.Messages()
	if len(cached) > window {
		cached = cached[len(cached)-window:]
	}

	msgs := make([]llm.Message, 0, len(cached)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: chatSystemPrompt(sess.Language())})
	for _, m := range cached {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := s.LLM.Complete(ctx, msgs)
	if err != nil {
		return chatFallback(sess.Language())
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return chatFallback(sess.Language())
	}
	if s.MaxReplyRunes > 0 && utf8.RuneCountInString(reply) > s.MaxReplyRunes {
		reply = string([]rune(reply)[:s.MaxReplyRunes])
	}
	return reply
}

// enqueue hands a message to the outbox when one is wired. Tests may run
// without a queue.
func (s *MessageService) enqueue(m domain.Message) {
	if s.Outbox == nil {
		return
	}
	s.Outbox.Enqueue(outbox.Item{
		MessageID: m.ID,
		ThreadID:  m.ThreadID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	})
}

// maybeAutoTitle replaces a placeholder thread title with one derived from
// the first prompt. Failures are ignored; the title is cosmetic.
func (s *MessageService) maybeAutoTitle(ctx context.Context, userID, threadID, prompt string) {
	th, err := repo.GetThread(ctx, s.DB, threadID, userID)
	if err != nil {
		return
	}
	if !shouldAutoTitle(th.Title) {
		return
	}
	gen := s.generateTitleFromPrompt(prompt)
	if gen == "" {
		return
	}
	gen = s.clipTitle(gen)
	_ = s.DB.WithContext(ctx).Model(&domain.Thread{}).
		Where("id = ? AND user_id = ?", threadID, userID).
		Update("title", gen).Error
}

// shouldAutoTitle reports whether the current title is a placeholder.
func shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(current)
	return t == "" || t == defaultTitleUntitled || strings.HasPrefix(t, defaultTitlePrefix)
}

// generateTitleFromPrompt derives a concise title from the prompt.
func (s *MessageService) generateTitleFromPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	toks := titleWordRE.FindAllString(strings.ToLower(prompt), -1)
	if len(toks) == 0 {
		return ""
	}

	titleCaser := cases.Title(s.TitleLocaleOrDefault())
	out := make([]string, 0, 8)

	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, titleCaser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, " ")
}

// clipTitle truncates a generated title to the configured maximum rune length.
func (s *MessageService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

// TitleLocaleOrDefault returns the configured locale for casing or English if unset.
func (s *MessageService) TitleLocaleOrDefault() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

// chatSystemPrompt frames the assistant's persona and pins the reply language.
func chatSystemPrompt(lang string) string {
	return "You are Animoa, a warm and supportive mental wellness companion. " +
		"Listen with empathy, validate feelings, and offer gentle, practical suggestions. " +
		"Keep replies conversational and reasonably short. You are not a medical " +
		"professional and you never diagnose; when something sounds serious, encourage " +
		"the person to reach out to a qualified professional. " +
		"Always respond in " + languageName(lang) + "."
}

// chatFallback is the canned reply used when the model is unavailable.
func chatFallback(lang string) string {
	switch lang {
	case "es":
		return "Lo siento, ahora mismo no puedo responder. Por favor, inténtalo de nuevo en un momento."
	case "zh":
		return "抱歉,我现在无法回复。请稍后再试。"
	default:
		return "I'm sorry, I can't respond right now. Please try again in a moment."
	}
}

// languageName maps a supported code to the name used in model prompts.
func languageName(code string) string {
	switch code {
	case "es":
		return "Spanish"
	case "zh":
		return "Simplified Chinese"
	default:
		return "English"
	}
}

// --- Title generation helpers ---

// Extract Unicode letters with optional trailing numbers.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// Minimal English stop-words set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"i": {}, "me": {}, "my": {}, "im": {}, "am": {},
}
