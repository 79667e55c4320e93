package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/events"
	"quiz-attempt-service/internal/platform/logger"
)

// AttemptRepository abstracts where live attempts are registered (in-memory, Redis, etc).
type AttemptRepository interface {
	Add(r *attempt.Runner)
	Get(attemptID string) (*attempt.Runner, bool)
	Remove(attemptID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ErrServiceClosed is returned by Start after Shutdown.
var ErrServiceClosed = errors.New("attempt service is shut down")

const outboxSize = 256

// AttemptService starts attempts, keeps them addressable while they run and
// publishes their lifecycle events.
type AttemptService struct {
	attempts           AttemptRepository
	quizzes            QuizRepository
	sink               attempt.ResultSink
	publisher          events.Publisher
	logger             *logger.Logger
	clock              clockwork.Clock
	secondsPerQuestion int

	mu      sync.Mutex
	closed  bool
	drained bool
	cancels map[string]context.CancelFunc
	running sync.WaitGroup

	outbox     chan *events.AttemptEvent
	dispatched chan struct{}
}

type Option func(*AttemptService)

func WithPublisher(p events.Publisher) Option {
	return func(s *AttemptService) { s.publisher = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *AttemptService) { s.logger = l }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *AttemptService) { s.clock = c }
}

func WithSecondsPerQuestion(seconds int) Option {
	return func(s *AttemptService) { s.secondsPerQuestion = seconds }
}

func NewAttemptService(store AttemptRepository, quizzes QuizRepository, sink attempt.ResultSink, opts ...Option) *AttemptService {
	s := &AttemptService{
		attempts:   store,
		quizzes:    quizzes,
		sink:       sink,
		publisher:  events.Discard{},
		logger:     logger.Nop(),
		clock:      clockwork.NewRealClock(),
		cancels:    make(map[string]context.CancelFunc),
		outbox:     make(chan *events.AttemptEvent, outboxSize),
		dispatched: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.dispatch()
	return s
}

// Start begins an attempt of quizID for userID. The attempt runs until it reaches a
// terminal phase, ctx is canceled or Abandon is called. Credentials needed by the
// collaborators must already be carried by ctx.
func (s *AttemptService) Start(ctx context.Context, quizID, userID string, status attempt.StatusSource) (*attempt.Runner, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil, &domain.ValidationError{Field: "quizId", Message: "required"}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	runner := attempt.NewRunner(quizID, s.quizzes, s.sink, status,
		attempt.WithClock(s.clock),
		attempt.WithLogger(s.logger.With("user_id", userID)),
		attempt.WithSecondsPerQuestion(s.secondsPerQuestion),
		attempt.WithTransitionHook(s.lifecycleHook(userID)),
	)
	runCtx, cancel := context.WithCancel(ctx)
	s.cancels[runner.ID()] = cancel
	s.running.Add(1)
	s.mu.Unlock()

	s.attempts.Add(runner)
	go s.run(runCtx, runner, userID)
	return runner, nil
}

func (s *AttemptService) run(ctx context.Context, runner *attempt.Runner, userID string) {
	defer s.running.Done()

	snap, err := runner.Run(ctx)
	s.attempts.Remove(runner.ID())

	s.mu.Lock()
	if cancel, ok := s.cancels[runner.ID()]; ok {
		cancel()
		delete(s.cancels, runner.ID())
	}
	s.mu.Unlock()

	if err != nil && !snap.Phase.Terminal() {
		evt := events.NewAttemptEvent(events.AttemptAbandoned, snap.AttemptID, snap.QuizID, s.clock.Now())
		evt.UserID = userID
		evt.Message = snap.Phase.String()
		s.enqueue(evt)
	}
}

// Get returns a running attempt.
func (s *AttemptService) Get(attemptID string) (*attempt.Runner, error) {
	runner, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return runner, nil
}

// Abandon stops a running attempt and waits for its runner to exit.
func (s *AttemptService) Abandon(ctx context.Context, attemptID string) error {
	runner, err := s.Get(attemptID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	cancel, ok := s.cancels[attemptID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	select {
	case <-runner.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown abandons every running attempt, then flushes pending events.
func (s *AttemptService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		s.running.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.drained = true
	close(s.outbox)
	s.mu.Unlock()
	select {
	case <-s.dispatched:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.publisher.Close()
}

func (s *AttemptService) lifecycleHook(userID string) attempt.TransitionHook {
	return func(from, to attempt.Phase, snap attempt.Snapshot) {
		var evt *events.AttemptEvent
		switch to {
		case attempt.PhaseInProgress:
			evt = events.NewAttemptEvent(events.AttemptStarted, snap.AttemptID, snap.QuizID, s.clock.Now())
		case attempt.PhaseCompleted:
			evt = events.NewAttemptEvent(events.AttemptCompleted, snap.AttemptID, snap.QuizID, s.clock.Now())
			evt.Result = snap.Result
			evt.Passed = snap.Passed
			evt.Trigger = string(snap.SubmittedBy)
		case attempt.PhaseVerificationRequired:
			evt = events.NewAttemptEvent(events.AttemptVerificationRequired, snap.AttemptID, snap.QuizID, s.clock.Now())
			evt.Message = errorMessage(snap)
		case attempt.PhaseError:
			evt = events.NewAttemptEvent(events.AttemptFailed, snap.AttemptID, snap.QuizID, s.clock.Now())
			evt.Message = errorMessage(snap)
			if snap.Error != nil {
				evt.ErrorKind = snap.Error.Kind
			}
		default:
			return
		}
		evt.UserID = userID
		s.enqueue(evt)
	}
}

func errorMessage(snap attempt.Snapshot) string {
	if snap.Error == nil {
		return ""
	}
	return snap.Error.Message
}

// enqueue never blocks the attempt loop; a full outbox drops the event.
func (s *AttemptService) enqueue(evt *events.AttemptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		return
	}
	select {
	case s.outbox <- evt:
	default:
		s.logger.Warn("attempt event dropped", "event_type", evt.Type, "attempt_id", evt.AttemptID)
	}
}

func (s *AttemptService) dispatch() {
	defer close(s.dispatched)
	for evt := range s.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("attempt event not published", "event_type", evt.Type, "error", err)
		}
		cancel()
	}
}
