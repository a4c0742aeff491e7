// Package services defines the business logic for sessions, threads,
// messages, feedback, assessments, mood logs, and profiles. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Thread-related errors.
var (
	// ErrThreadNotFound indicates that the requested thread does not exist or
	// is not accessible to the current user.
	ErrThreadNotFound = errors.New("thread not found")

	// ErrNoPendingDelete is returned when a deletion is confirmed without a
	// prior deletion request in the session.
	ErrNoPendingDelete = errors.New("no deletion pending")

	// ErrStaleDeleteConfirm is returned when a deletion confirmation names a
	// thread other than the one the pending request was armed for.
	ErrStaleDeleteConfirm = errors.New("deletion confirmation is stale")
)

// Message-related errors.
var (
	// ErrEmptyPrompt is returned when a request to create a message contains
	// an empty prompt.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a request to create a message exceeds the
	// maximum configured length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrMessageNotFound indicates that the referenced message does not exist
	// within the thread.
	ErrMessageNotFound = errors.New("message not found")
)

// Feedback-related errors.
var (
	// ErrInvalidReaction is returned when a reaction tag is outside the
	// allowed set.
	ErrInvalidReaction = errors.New("invalid reaction tag")

	// ErrForbiddenFeedback is returned when a user attempts to leave feedback
	// on a message they are not permitted to rate.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrCommentWithoutReaction is returned when a comment is submitted for a
	// message that has no negative reaction on record.
	ErrCommentWithoutReaction = errors.New("comment requires a not-helpful reaction")
)

// Assessment-related errors.
var (
	// ErrIncompleteAssessment is returned when a questionnaire submission is
	// missing one or more answers.
	ErrIncompleteAssessment = errors.New("assessment answers incomplete")

	// ErrAssessmentNotFound indicates that the requested assessment does not
	// exist or is not accessible to the current user.
	ErrAssessmentNotFound = errors.New("assessment not found")
)

// Mood- and profile-related errors.
var (
	// ErrInvalidMood is returned when a mood value is outside the allowed set.
	ErrInvalidMood = errors.New("invalid mood value")

	// ErrInvalidAge is returned when a profile update carries an age outside
	// the accepted range.
	ErrInvalidAge = errors.New("age out of range")

	// ErrInvalidLanguage is returned when a language code cannot be resolved
	// to a supported language.
	ErrInvalidLanguage = errors.New("unsupported language")
)
