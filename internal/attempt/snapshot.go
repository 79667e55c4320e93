package attempt

import (
	"fmt"

	"quiz-attempt-service/internal/domain"
)

// QuestionView is what a client may render for the current question.
type QuestionView struct {
	Index   int      `json:"index"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// ErrorView describes why an attempt ended in the error or interrupt phase.
type ErrorView struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// Snapshot is an immutable view of an attempt, safe to hand to other goroutines.
type Snapshot struct {
	AttemptID        string         `json:"attemptId"`
	QuizID           string         `json:"quizId"`
	Title            string         `json:"title,omitempty"`
	Phase            Phase          `json:"phase"`
	Question         *QuestionView  `json:"question,omitempty"`
	QuestionCount    int            `json:"questionCount"`
	CurrentIndex     int            `json:"currentIndex"`
	IsLastQuestion   bool           `json:"isLastQuestion"`
	Selected         *int           `json:"selected,omitempty"`
	Answered         []bool         `json:"answered,omitempty"`
	AnsweredCount    int            `json:"answeredCount"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Clock            string         `json:"clock"`
	Submitted        bool           `json:"submitted"`
	SubmittedBy      Trigger        `json:"submittedBy,omitempty"`
	Result           *domain.Result `json:"result,omitempty"`
	Passed           bool           `json:"passed"`
	Error            *ErrorView     `json:"error,omitempty"`
}

// Snapshot renders the machine for attemptID. The question view only exists while
// the attempt is in progress, and never carries the correct option.
func (m *Machine) Snapshot(attemptID string) Snapshot {
	snap := Snapshot{
		AttemptID:        attemptID,
		QuizID:           m.quizID,
		Title:            m.quiz.Title,
		Phase:            m.phase,
		QuestionCount:    len(m.quiz.Questions),
		CurrentIndex:     m.nav.Index(),
		IsLastQuestion:   m.nav.IsLast(),
		AnsweredCount:    m.answers.AnsweredCount(),
		RemainingSeconds: m.countdown.Remaining(),
		Clock:            FormatClock(m.countdown.Remaining()),
		Submitted:        m.guard.Closed(),
		SubmittedBy:      m.trigger,
	}

	if m.phase == PhaseInProgress {
		q := m.quiz.Questions[m.nav.Index()]
		snap.Question = &QuestionView{
			Index:   m.nav.Index(),
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
		}
		if option, ok := m.answers.Get(m.nav.Index()); ok {
			snap.Selected = &option
		}
		snap.Answered = make([]bool, len(m.quiz.Questions))
		for i := range snap.Answered {
			_, snap.Answered[i] = m.answers.Get(i)
		}
	}

	if result, ok := m.Result(); ok {
		snap.Result = &result
		snap.Passed = result.Passed()
	}

	switch m.phase {
	case PhaseError:
		snap.Error = &ErrorView{Kind: domain.Classify(m.failure), Message: failureMessage(m.failure)}
	case PhaseVerificationRequired:
		snap.Error = &ErrorView{Kind: domain.KindVerificationRequired, Message: m.block.Reason}
	}
	return snap
}

func failureMessage(err error) string {
	switch domain.Classify(err) {
	case domain.KindNotFound:
		return "Quiz not found"
	case domain.KindNone:
		return ""
	}
	return err.Error()
}

// FormatClock renders seconds as m:ss.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
