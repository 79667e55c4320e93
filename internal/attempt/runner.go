package attempt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/platform/logger"
)

// ContentProvider supplies quiz definitions.
type ContentProvider interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// ResultSink scores a submission.
type ResultSink interface {
	Submit(ctx context.Context, submission domain.Submission) (domain.Result, error)
}

// StatusSource exposes already-fetched session state; it must not block.
type StatusSource interface {
	CurrentStatus() domain.SessionStatus
}

// StaticStatus is a StatusSource over a value captured at connect time.
type StaticStatus domain.SessionStatus

func (s StaticStatus) CurrentStatus() domain.SessionStatus { return domain.SessionStatus(s) }

// TransitionHook observes phase changes from inside the event loop. It must not block.
type TransitionHook func(from, to Phase, snap Snapshot)

// ErrAlreadyRunning is returned when Run is called twice on one Runner.
var ErrAlreadyRunning = errors.New("attempt runner already started")

type Option func(*Runner)

func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) { r.clock = clock }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithSecondsPerQuestion(seconds int) Option {
	return func(r *Runner) { r.secondsPerQuestion = seconds }
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(r *Runner) { r.hooks = append(r.hooks, hook) }
}

func WithID(id string) Option {
	return func(r *Runner) { r.id = id }
}

type event interface{}

type loadedEvent struct {
	quiz domain.Quiz
	err  error
}

type resolvedEvent struct {
	result domain.Result
	err    error
}

type commandEvent struct {
	apply func(m *Machine, now time.Time) ([]Effect, error)
	reply chan error
}

// Runner drives one attempt. A single goroutine (Run) owns the Machine; commands,
// ticks and network responses are all serialized through its event queue. The
// only suspension points are the quiz fetch and the result submission, which run
// in helper goroutines and re-enter the queue with their outcome.
type Runner struct {
	id                 string
	secondsPerQuestion int
	machine            *Machine
	quizzes            ContentProvider
	sink               ResultSink
	status             StatusSource
	clock              clockwork.Clock
	logger             *logger.Logger
	hooks              []TransitionHook

	started atomic.Bool
	events  chan event
	done    chan struct{}
	ticker  clockwork.Ticker

	mu          sync.Mutex
	latest      Snapshot
	finished    bool
	subscribers map[chan Snapshot]struct{}
}

func NewRunner(quizID string, quizzes ContentProvider, sink ResultSink, status StatusSource, opts ...Option) *Runner {
	r := &Runner{
		quizzes:     quizzes,
		sink:        sink,
		status:      status,
		clock:       clockwork.NewRealClock(),
		logger:      logger.Nop(),
		events:      make(chan event, 16),
		done:        make(chan struct{}),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	r.machine = NewMachine(quizID, r.secondsPerQuestion)
	r.logger = r.logger.With("attempt_id", r.id, "quiz_id", quizID)
	r.latest = r.machine.Snapshot(r.id)
	return r
}

func (r *Runner) ID() string { return r.id }

// Done is closed once the attempt reached a terminal phase or was abandoned.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Snapshot returns the latest published view.
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

// Run loads the quiz and processes events until the attempt is terminal or ctx is
// canceled. Cancellation stops the ticker and drops any in-flight result; the
// returned error is then ctx.Err().
func (r *Runner) Run(ctx context.Context) (Snapshot, error) {
	if !r.started.CompareAndSwap(false, true) {
		return r.Snapshot(), ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer r.finish()

	quizID := r.machine.QuizID()
	r.spawn(ctx, func(ctx context.Context) event {
		quiz, err := r.quizzes.GetQuiz(ctx, quizID)
		return loadedEvent{quiz: quiz, err: err}
	})

	for !r.machine.Phase().Terminal() {
		var tick <-chan time.Time
		if r.ticker != nil {
			tick = r.ticker.Chan()
		}
		select {
		case <-ctx.Done():
			r.execute(ctx, r.machine.Abandon())
			r.logger.Info("attempt abandoned", "phase", r.machine.Phase().String())
			return r.machine.Snapshot(r.id), ctx.Err()
		case <-tick:
			r.step(ctx, func() []Effect {
				return r.machine.Tick(r.clock.Now())
			})
		case ev := <-r.events:
			r.handle(ctx, ev)
		}
	}
	return r.machine.Snapshot(r.id), nil
}

func (r *Runner) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case loadedEvent:
		r.step(ctx, func() []Effect {
			if ev.err != nil {
				r.logger.Warn("quiz load failed", "error", ev.err, "kind", string(domain.Classify(ev.err)))
				return r.machine.LoadFailed(ev.err)
			}
			return r.machine.Loaded(ev.quiz, r.status.CurrentStatus(), r.clock.Now())
		})
	case resolvedEvent:
		r.step(ctx, func() []Effect {
			if ev.err != nil {
				r.logger.Warn("submission rejected", "error", ev.err, "kind", string(domain.Classify(ev.err)))
			}
			return r.machine.Resolved(ev.result, ev.err)
		})
	case commandEvent:
		var err error
		r.step(ctx, func() []Effect {
			var effects []Effect
			effects, err = ev.apply(r.machine, r.clock.Now())
			return effects
		})
		// acknowledged only after the resulting snapshot is published
		ev.reply <- err
	}
}

func (r *Runner) step(ctx context.Context, transition func() []Effect) {
	from := r.machine.Phase()
	r.execute(ctx, transition())

	snap := r.machine.Snapshot(r.id)
	if to := r.machine.Phase(); to != from {
		r.logger.Info("attempt phase changed", "from", from.String(), "to", to.String())
		if to == PhaseError && domain.Classify(r.machine.Failure()) == domain.KindValidation && from == PhaseInProgress {
			r.logger.Error("submission payload broke answer invariants", "error", r.machine.Failure())
		}
		for _, hook := range r.hooks {
			hook(from, to, snap)
		}
	}
	r.publish(snap)
}

func (r *Runner) execute(ctx context.Context, effects []Effect) {
	for _, effect := range effects {
		switch eff := effect.(type) {
		case StartTimer:
			if r.ticker == nil {
				r.ticker = r.clock.NewTicker(time.Second)
			}
		case StopTimer:
			if r.ticker != nil {
				r.ticker.Stop()
				r.ticker = nil
			}
		case CallSink:
			r.logger.Info("submitting attempt",
				"trigger", string(eff.Trigger),
				"answered", r.machine.Answers().AnsweredCount(),
				"time_taken", eff.Submission.TimeTakenSeconds)
			submission := eff.Submission
			r.spawn(ctx, func(ctx context.Context) event {
				result, err := r.sink.Submit(ctx, submission)
				return resolvedEvent{result: result, err: err}
			})
		}
	}
}

func (r *Runner) spawn(ctx context.Context, call func(context.Context) event) {
	go func() {
		ev := call(ctx)
		select {
		case r.events <- ev:
		case <-ctx.Done():
		}
	}()
}

// Answer selects optionIndex for questionIndex.
func (r *Runner) Answer(ctx context.Context, questionIndex, optionIndex int) error {
	return r.post(ctx, func(m *Machine, _ time.Time) ([]Effect, error) {
		return nil, m.SelectAnswer(questionIndex, optionIndex)
	})
}

func (r *Runner) Next(ctx context.Context) error {
	return r.post(ctx, func(m *Machine, _ time.Time) ([]Effect, error) {
		return nil, m.Next()
	})
}

func (r *Runner) Previous(ctx context.Context) error {
	return r.post(ctx, func(m *Machine, _ time.Time) ([]Effect, error) {
		return nil, m.Previous()
	})
}

func (r *Runner) JumpTo(ctx context.Context, index int) error {
	return r.post(ctx, func(m *Machine, _ time.Time) ([]Effect, error) {
		return nil, m.JumpTo(index)
	})
}

// Submit requests a user submission. It returns once the request was applied,
// not when the result arrives; repeated calls are no-ops.
func (r *Runner) Submit(ctx context.Context) error {
	return r.post(ctx, func(m *Machine, now time.Time) ([]Effect, error) {
		if m.Submitted() {
			r.logger.Debug("duplicate submit ignored")
		}
		return m.Submit(now), nil
	})
}

func (r *Runner) post(ctx context.Context, apply func(*Machine, time.Time) ([]Effect, error)) error {
	cmd := commandEvent{apply: apply, reply: make(chan error, 1)}
	select {
	case r.events <- cmd:
	case <-r.done:
		return domain.ErrAttemptClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-r.done:
		select {
		case err := <-cmd.reply:
			return err
		default:
			return domain.ErrAttemptClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The channel is closed when the attempt finishes; cancel releases it earlier.
func (r *Runner) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	r.mu.Lock()
	ch <- r.latest
	if r.finished {
		close(ch)
		r.mu.Unlock()
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Runner) publish(snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = snap
	r.broadcastLocked(snap)
}

func (r *Runner) broadcastLocked(snap Snapshot) {
	for ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: drop its oldest snapshot so the newest always lands
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// finish publishes the final view, closes every subscriber and marks the runner done.
func (r *Runner) finish() {
	r.mu.Lock()
	final := r.machine.Snapshot(r.id)
	if final.Phase != r.latest.Phase || final.RemainingSeconds != r.latest.RemainingSeconds {
		r.broadcastLocked(final)
	}
	r.latest = final
	r.finished = true
	for ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, ch)
	}
	r.mu.Unlock()
	close(r.done)
}
