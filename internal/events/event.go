package events

import (
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// Type names an attempt lifecycle event.
type Type string

const (
	AttemptStarted              Type = "attempt.started"
	AttemptCompleted            Type = "attempt.completed"
	AttemptVerificationRequired Type = "attempt.verification_required"
	AttemptFailed               Type = "attempt.failed"
	AttemptAbandoned            Type = "attempt.abandoned"
)

const (
	DefaultTopic = "quiz.attempts"
	source       = "quiz-attempt-service"
	version      = "1"
)

// AttemptEvent is the payload published whenever an attempt changes lifecycle stage.
type AttemptEvent struct {
	ID        string           `json:"id"`
	Type      Type             `json:"type"`
	AttemptID string           `json:"attemptId"`
	QuizID    string           `json:"quizId"`
	UserID    string           `json:"userId,omitempty"`
	Trigger   string           `json:"trigger,omitempty"`
	Result    *domain.Result   `json:"result,omitempty"`
	Passed    bool             `json:"passed,omitempty"`
	ErrorKind domain.ErrorKind `json:"errorKind,omitempty"`
	Message   string           `json:"message,omitempty"`
	Source    string           `json:"source"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewAttemptEvent fills the envelope fields shared by every event.
func NewAttemptEvent(t Type, attemptID, quizID string, at time.Time) *AttemptEvent {
	return &AttemptEvent{
		ID:        uuid.NewString(),
		Type:      t,
		AttemptID: attemptID,
		QuizID:    quizID,
		Source:    source,
		Version:   version,
		Timestamp: at.UTC(),
	}
}
