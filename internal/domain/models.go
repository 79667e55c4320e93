package domain

import "time"

// Unset marks a question the user did not answer. It never collides with an option index.
const Unset = -1

// PassPercentage is the score at which a result counts as passed.
const PassPercentage = 70

// Question models an MCQ question. CorrectOptionIndex is only known to catalogue
// sources and is never surfaced to an attempt view.
type Question struct {
	Text               string   `json:"question" validate:"required"`
	Options            []string `json:"options" validate:"min=2,dive,required"`
	CorrectOptionIndex *int     `json:"correctAnswer,omitempty"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id" validate:"required"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions" validate:"min=1,dive"`
}

// Summary is a listing entry for a quiz.
type Summary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	QuestionCount int    `json:"questionCount"`
}

// Submission is the payload handed to the result sink. Answers has exactly one
// entry per question; unanswered entries hold Unset.
type Submission struct {
	QuizID           string `json:"quizId" validate:"required"`
	Answers          []int  `json:"answers"`
	TimeTakenSeconds int    `json:"timeTaken" validate:"gte=0"`
}

// Result is produced by the external result service.
type Result struct {
	Score            int     `json:"score"`
	Total            int     `json:"total"`
	Percentage       float64 `json:"percentage"`
	TimeTakenSeconds int     `json:"timeTaken"`
	AttemptOrdinal   int     `json:"attempt"`
}

// Passed reports whether the result reaches PassPercentage.
func (r Result) Passed() bool {
	return r.Percentage >= PassPercentage
}

// SessionStatus is the already-fetched session state read by the verification gate.
type SessionStatus struct {
	UserID     string `json:"userId"`
	IsVerified bool   `json:"isVerified"`
}

// HistoryEntry is one past attempt as reported by the result service.
type HistoryEntry struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	QuizTitle   string    `json:"quizTitle"`
	Result      Result    `json:"result"`
	CompletedAt time.Time `json:"completedAt"`
}

// HistoryPage is a paginated slice of the user's history.
type HistoryPage struct {
	Entries    []HistoryEntry `json:"entries"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// Stats aggregates a user's results.
type Stats struct {
	TotalAttempts     int     `json:"totalAttempts"`
	AverageScore      float64 `json:"averageScore"`
	BestScore         float64 `json:"bestScore"`
	TotalQuizzesTaken int     `json:"totalQuizzesTaken"`
}
