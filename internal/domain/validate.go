package domain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateQuiz checks that a loaded quiz can back an attempt.
func ValidateQuiz(q Quiz) error {
	if err := structValidator().Struct(q); err != nil {
		return toValidationError(err, ErrInvalidQuiz)
	}
	for i, question := range q.Questions {
		if idx := question.CorrectOptionIndex; idx != nil && (*idx < 0 || *idx >= len(question.Options)) {
			return &ValidationError{
				Field:   fmt.Sprintf("Quiz.Questions[%d].CorrectOptionIndex", i),
				Message: "out of range",
				Err:     ErrInvalidQuiz,
			}
		}
	}
	return nil
}

// ValidateSubmission checks a submission against the quiz it answers.
func ValidateSubmission(s Submission, q Quiz) error {
	if err := structValidator().Struct(s); err != nil {
		return toValidationError(err, ErrInvalidSubmission)
	}
	if len(s.Answers) != len(q.Questions) {
		return &ValidationError{
			Field:   "Submission.Answers",
			Message: fmt.Sprintf("expected %d answers, got %d", len(q.Questions), len(s.Answers)),
			Err:     ErrInvalidSubmission,
		}
	}
	for i, answer := range s.Answers {
		if answer == Unset {
			continue
		}
		if answer < 0 || answer >= len(q.Questions[i].Options) {
			return &ValidationError{
				Field:   fmt.Sprintf("Submission.Answers[%d]", i),
				Message: "option out of range",
				Err:     ErrInvalidSubmission,
			}
		}
	}
	return nil
}

func toValidationError(err error, sentinel error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{
			Field:   fe.Namespace(),
			Message: fmt.Sprintf("failed on %q", fe.Tag()),
			Err:     sentinel,
		}
	}
	return &ValidationError{Message: err.Error(), Err: sentinel}
}
