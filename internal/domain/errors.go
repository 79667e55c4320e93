package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrVerificationRequired is returned when the acting account must verify its email first.
	ErrVerificationRequired = errors.New("email verification required")
	// ErrInvalidQuiz indicates a loaded quiz definition is malformed.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
	// ErrInvalidSubmission indicates a submission payload broke the answer invariants.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrNotInProgress is returned for attempt commands issued outside the in-progress phase.
	ErrNotInProgress = errors.New("attempt is not in progress")
	// ErrInvalidAnswer indicates a question/option pair that was never rendered.
	ErrInvalidAnswer = errors.New("invalid answer selection")
	// ErrAttemptClosed is returned when a command reaches an attempt that already finished.
	ErrAttemptClosed = errors.New("attempt is closed")
	// ErrAttemptNotFound is returned when an attempt id is unknown.
	ErrAttemptNotFound = errors.New("attempt not found")
)

// NetworkError wraps a failed call to an external collaborator.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: request failed with status %d", e.Op, e.StatusCode)
	}
	return e.Op + ": request failed"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports a malformed quiz or submission field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorKind is the taxonomy every collaborator failure is mapped into.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindNotFound             ErrorKind = "not_found"
	KindVerificationRequired ErrorKind = "verification_required"
	KindNetwork              ErrorKind = "network"
	KindValidation           ErrorKind = "validation"
)

// Classify maps err into the error taxonomy. Unknown failures count as network errors
// since both collaborators are reached over the network.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrVerificationRequired):
		return KindVerificationRequired
	case errors.Is(err, ErrQuizNotFound):
		return KindNotFound
	case errors.As(err, &verr), errors.Is(err, ErrInvalidQuiz), errors.Is(err, ErrInvalidSubmission):
		return KindValidation
	}
	return KindNetwork
}
