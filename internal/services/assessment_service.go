// Package services – AssessmentService
//
// This file implements the wellness questionnaire flow. A submission is
// validated for completeness, persisted in two phases (answers first, the
// generated recommendation back-filled afterwards), and optionally enriched
// with the active thread's recent chat history before the composer runs.
//
// Storage trouble does not block the user: when the insert fails the service
// still composes a recommendation over an in-memory assessment and returns
// it together with the storage error, mirroring how thread creation degrades.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/llm"
	"github.com/animoa/animoa-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// historyWindow caps the chat excerpt folded into the recommendation prompt.
const historyWindow = 10

// AssessmentService owns questionnaire submissions and their recommendations.
type AssessmentService struct {
	DB       *gorm.DB
	Composer *Composer
	Messages *MessageService
}

// Submit validates the questionnaire answers, persists them, composes a
// recommendation, and back-fills it onto the stored row. When useHistory is
// set and the session has an active thread, up to the ten most recent
// messages are added to the prompt as context.
//
// The returned assessment always carries a recommendation. A nil error means
// both phases landed; a non-nil error alongside a non-nil assessment means
// the result is degraded (answers or recommendation not durably stored).
func (s *AssessmentService) Submit(ctx context.Context, sess *SessionState, answers domain.AssessmentAnswers, useHistory bool) (*domain.Assessment, error) {
	tr := otel.Tracer("services/AssessmentService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("user.id", sess.UserID),
			attribute.Bool("use_history", useHistory),
		),
	)
	defer span.End()

	if !answers.Complete() {
		return nil, ErrIncompleteAssessment
	}
	if answers.Language == "" {
		answers.Language = sess.Language()
	}
	answers.Language = NormalizeLanguage(answers.Language)

	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	var history []llm.Message
	if useHistory {
		if threadID := sess.ActiveThreadID(); threadID != "" {
			history, _ = s.Messages.RecentHistory(ctx, threadID, historyWindow)
		}
	}
	usedHistory := len(history) > 0

	// Phase one: persist the answers. On failure carry on with an in-memory
	// assessment so the user still gets their recommendation.
	var storageErr error
	a, err := repo.CreateAssessment(ctx, s.DB, sess.UserID, string(raw), usedHistory)
	if err != nil {
		storageErr = err
		a = &domain.Assessment{
			ID:          uuid.NewString(),
			UserID:      sess.UserID,
			Answers:     string(raw),
			UsedHistory: usedHistory,
			CreatedAt:   time.Now().UTC(),
		}
	}

	rec := s.Composer.Compose(ctx, answers, history)
	a.Recommendation = &rec

	// Phase two: back-fill the recommendation. Skipped when phase one never
	// landed; a failure here leaves the stored row with a NULL recommendation,
	// which readers render as "not yet generated".
	if storageErr == nil {
		if err := repo.SetRecommendation(ctx, s.DB, a.ID, sess.UserID, rec); err != nil {
			storageErr = err
		}
	}

	return a, storageErr
}

// Get fetches a single assessment owned by userID.
func (s *AssessmentService) Get(ctx context.Context, userID, id string) (*domain.Assessment, error) {
	a, err := repo.GetAssessment(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns all assessments for userID, most recent first.
func (s *AssessmentService) List(ctx context.Context, userID string) ([]domain.Assessment, error) {
	return repo.ListAssessments(ctx, s.DB, userID)
}

// Delete removes an assessment owned by userID.
func (s *AssessmentService) Delete(ctx context.Context, userID, id string) error {
	err := repo.DeleteAssessment(ctx, s.DB, id, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAssessmentNotFound
	}
	return err
}
