package domain

import (
	"errors"
	"testing"
)

func validQuiz() Quiz {
	return Quiz{
		ID:    "quiz-1",
		Title: "Arithmetic",
		Questions: []Question{
			{Text: "2 + 2?", Options: []string{"3", "4"}},
			{Text: "3 + 3?", Options: []string{"6", "7", "8"}},
		},
	}
}

func TestValidateQuiz(t *testing.T) {
	if err := ValidateQuiz(validQuiz()); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}

	noQuestions := validQuiz()
	noQuestions.Questions = nil
	if err := ValidateQuiz(noQuestions); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected ErrInvalidQuiz for empty quiz, got %v", err)
	}

	oneOption := validQuiz()
	oneOption.Questions[1].Options = []string{"only"}
	err := ValidateQuiz(oneOption)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if Classify(err) != KindValidation {
		t.Fatalf("expected validation kind, got %q", Classify(err))
	}

	badIndex := validQuiz()
	idx := 5
	badIndex.Questions[0].CorrectOptionIndex = &idx
	if err := ValidateQuiz(badIndex); !errors.Is(err, ErrInvalidQuiz) {
		t.Fatalf("expected out of range correct index to fail, got %v", err)
	}
}

func TestValidateSubmission(t *testing.T) {
	q := validQuiz()

	if err := ValidateSubmission(Submission{QuizID: "quiz-1", Answers: []int{1, Unset}}, q); err != nil {
		t.Fatalf("expected valid submission, got %v", err)
	}
	if err := ValidateSubmission(Submission{QuizID: "quiz-1", Answers: []int{1}}, q); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected length mismatch to fail, got %v", err)
	}
	if err := ValidateSubmission(Submission{QuizID: "quiz-1", Answers: []int{2, 0}}, q); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected option out of range to fail, got %v", err)
	}
	if err := ValidateSubmission(Submission{Answers: []int{0, 0}}, q); !errors.Is(err, ErrInvalidSubmission) {
		t.Fatalf("expected missing quiz id to fail, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{ErrQuizNotFound, KindNotFound},
		{errors.Join(errors.New("load"), ErrVerificationRequired), KindVerificationRequired},
		{&NetworkError{Op: "submit", StatusCode: 500}, KindNetwork},
		{&ValidationError{Field: "x", Message: "bad"}, KindValidation},
		{errors.New("connection reset"), KindNetwork},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestResultPassed(t *testing.T) {
	if !(Result{Percentage: 70}).Passed() {
		t.Fatalf("70%% should pass")
	}
	if (Result{Percentage: 69.9}).Passed() {
		t.Fatalf("69.9%% should not pass")
	}
}
