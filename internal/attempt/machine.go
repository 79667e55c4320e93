package attempt

import (
	"fmt"
	"time"

	"quiz-attempt-service/internal/domain"
)

// DefaultSecondsPerQuestion is the time budget granted per question.
const DefaultSecondsPerQuestion = 120

// Effect is a side effect requested by a transition and executed by the Runner.
type Effect interface{ isEffect() }

// StartTimer starts the one-second ticker.
type StartTimer struct{}

// StopTimer tears the ticker down. Executing it twice is harmless.
type StopTimer struct{}

// CallSink hands the latched submission to the result sink.
type CallSink struct {
	Submission domain.Submission
	Trigger    Trigger
}

func (StartTimer) isEffect() {}
func (StopTimer) isEffect()  {}
func (CallSink) isEffect()   {}

// Trigger names what caused a submission.
type Trigger string

const (
	TriggerUser  Trigger = "user"
	TriggerTimer Trigger = "timer"
)

// Machine holds one attempt's state. Every method is a synchronous transition;
// none performs I/O, so the caller decides where suspension points happen.
type Machine struct {
	quizID             string
	secondsPerQuestion int
	gate               VerificationGate

	phase     Phase
	quiz      domain.Quiz
	answers   *AnswerStore
	nav       Navigator
	countdown Countdown
	guard     SubmissionGuard
	startedAt time.Time
	trigger   Trigger
	result    *domain.Result
	failure   error
	block     Decision
}

func NewMachine(quizID string, secondsPerQuestion int) *Machine {
	if secondsPerQuestion <= 0 {
		secondsPerQuestion = DefaultSecondsPerQuestion
	}
	return &Machine{
		quizID:             quizID,
		secondsPerQuestion: secondsPerQuestion,
		phase:              PhaseLoading,
		answers:            NewAnswerStore(),
	}
}

func (m *Machine) QuizID() string        { return m.quizID }
func (m *Machine) Phase() Phase          { return m.phase }
func (m *Machine) Quiz() domain.Quiz     { return m.quiz }
func (m *Machine) Remaining() int        { return m.countdown.Remaining() }
func (m *Machine) CurrentIndex() int     { return m.nav.Index() }
func (m *Machine) Submitted() bool       { return m.guard.Closed() }
func (m *Machine) Failure() error        { return m.failure }
func (m *Machine) BlockReason() string   { return m.block.Reason }
func (m *Machine) SubmittedBy() Trigger  { return m.trigger }
func (m *Machine) Answers() *AnswerStore { return m.answers }

// Result returns the stored result once the attempt completed.
func (m *Machine) Result() (domain.Result, bool) {
	if m.result == nil {
		return domain.Result{}, false
	}
	return *m.result, true
}

// Loaded applies a fetched quiz. The gate reads the already-fetched session status.
func (m *Machine) Loaded(quiz domain.Quiz, status domain.SessionStatus, now time.Time) []Effect {
	if m.phase != PhaseLoading {
		return nil
	}
	if decision := m.gate.Check(status); !decision.Pass {
		m.interrupt(decision)
		return nil
	}
	if err := domain.ValidateQuiz(quiz); err != nil {
		m.fail(err)
		return nil
	}
	m.quiz = quiz
	m.nav = NewNavigator(len(quiz.Questions))
	m.countdown = NewCountdown(Budget(len(quiz.Questions), m.secondsPerQuestion))
	m.startedAt = now
	m.phase = PhaseInProgress
	return []Effect{StartTimer{}}
}

// LoadFailed applies a failed quiz fetch.
func (m *Machine) LoadFailed(err error) []Effect {
	if m.phase != PhaseLoading {
		return nil
	}
	if domain.Classify(err) == domain.KindVerificationRequired {
		m.interrupt(m.gate.Block(err))
		return nil
	}
	m.fail(err)
	return nil
}

// Tick consumes one second. Reaching zero submits within the same tick.
func (m *Machine) Tick(now time.Time) []Effect {
	if m.phase != PhaseInProgress {
		return nil
	}
	if m.countdown.Tick() {
		return m.submit(now, TriggerTimer)
	}
	return nil
}

// Submit is the user-initiated submission. Calls after the latch closed are no-ops.
func (m *Machine) Submit(now time.Time) []Effect {
	return m.submit(now, TriggerUser)
}

func (m *Machine) submit(now time.Time, trigger Trigger) []Effect {
	if m.phase != PhaseInProgress {
		return nil
	}
	if !m.guard.TryClose() {
		return nil
	}
	m.trigger = trigger

	taken := int(now.Sub(m.startedAt) / time.Second)
	if taken < 0 {
		taken = 0
	}
	submission := domain.Submission{
		QuizID:           m.quiz.ID,
		Answers:          m.answers.Ordered(len(m.quiz.Questions)),
		TimeTakenSeconds: taken,
	}
	if err := domain.ValidateSubmission(submission, m.quiz); err != nil {
		m.fail(err)
		return []Effect{StopTimer{}}
	}
	m.phase = PhaseSubmitting
	return []Effect{StopTimer{}, CallSink{Submission: submission, Trigger: trigger}}
}

// Resolved applies the result sink's answer for the latched submission.
// The latch stays closed whatever the outcome.
func (m *Machine) Resolved(result domain.Result, err error) []Effect {
	if m.phase != PhaseSubmitting {
		return nil
	}
	switch {
	case err == nil:
		m.result = &result
		m.phase = PhaseCompleted
	case domain.Classify(err) == domain.KindVerificationRequired:
		m.interrupt(m.gate.Block(err))
	default:
		m.fail(err)
	}
	return []Effect{StopTimer{}}
}

// Abandon is applied when the user leaves; it only tears the timer down.
func (m *Machine) Abandon() []Effect {
	return []Effect{StopTimer{}}
}

// SelectAnswer records a selection for a rendered question/option pair.
func (m *Machine) SelectAnswer(questionIndex, optionIndex int) error {
	if m.phase != PhaseInProgress {
		return domain.ErrNotInProgress
	}
	if questionIndex < 0 || questionIndex >= len(m.quiz.Questions) {
		return fmt.Errorf("%w: question %d", domain.ErrInvalidAnswer, questionIndex)
	}
	if optionIndex < 0 || optionIndex >= len(m.quiz.Questions[questionIndex].Options) {
		return fmt.Errorf("%w: option %d of question %d", domain.ErrInvalidAnswer, optionIndex, questionIndex)
	}
	m.answers.Set(questionIndex, optionIndex)
	return nil
}

func (m *Machine) Next() error {
	if m.phase != PhaseInProgress {
		return domain.ErrNotInProgress
	}
	m.nav.Next()
	return nil
}

func (m *Machine) Previous() error {
	if m.phase != PhaseInProgress {
		return domain.ErrNotInProgress
	}
	m.nav.Previous()
	return nil
}

func (m *Machine) JumpTo(index int) error {
	if m.phase != PhaseInProgress {
		return domain.ErrNotInProgress
	}
	m.nav.JumpTo(index)
	return nil
}

func (m *Machine) fail(err error) {
	m.failure = err
	m.phase = PhaseError
}

func (m *Machine) interrupt(d Decision) {
	m.block = d
	m.phase = PhaseVerificationRequired
}
