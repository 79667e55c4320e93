package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/attempt"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/events"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/platform/logger"
)

type sinkFunc func(ctx context.Context, sub domain.Submission) (domain.Result, error)

func (f sinkFunc) Submit(ctx context.Context, sub domain.Submission) (domain.Result, error) {
	return f(ctx, sub)
}

var scoreAll = sinkFunc(func(_ context.Context, sub domain.Submission) (domain.Result, error) {
	return domain.Result{Score: len(sub.Answers), Total: len(sub.Answers), Percentage: 100, TimeTakenSeconds: sub.TimeTakenSeconds, AttemptOrdinal: 1}, nil
})

func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic",
			Questions: []domain.Question{
				{Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}},
				{Text: "What is 3 * 3?", Options: []string{"6", "9"}},
			},
		},
	}
}

type harness struct {
	service  *app.AttemptService
	store    *memory.AttemptStore
	messages <-chan *message.Message
}

func newHarness(t *testing.T, sink attempt.ResultSink) harness {
	t.Helper()
	pub, ch := events.NewChannelPublisher("", logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	messages, err := ch.Subscribe(ctx, events.DefaultTopic)
	require.NoError(t, err)

	store := memory.NewAttemptStore()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuizzes()), time.Minute)
	service := app.NewAttemptService(store, quizzes, sink,
		app.WithPublisher(pub),
		app.WithClock(clockwork.NewFakeClock()),
	)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = service.Shutdown(shutdownCtx)
	})
	return harness{service: service, store: store, messages: messages}
}

func (h harness) nextEvent(t *testing.T) events.AttemptEvent {
	t.Helper()
	select {
	case msg := <-h.messages:
		msg.Ack()
		var evt events.AttemptEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &evt))
		return evt
	case <-time.After(2 * time.Second):
		t.Fatalf("no attempt event published")
	}
	return events.AttemptEvent{}
}

func waitPhase(t *testing.T, r *attempt.Runner, phase attempt.Phase) {
	t.Helper()
	require.Eventually(t, func() bool { return r.Snapshot().Phase == phase }, 2*time.Second, 5*time.Millisecond)
}

func TestStartAndCompleteAttempt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scoreAll)

	runner, err := h.service.Start(ctx, "quiz-1", "u1", attempt.StaticStatus{UserID: "u1", IsVerified: true})
	require.NoError(t, err)

	got, err := h.service.Get(runner.ID())
	require.NoError(t, err)
	assert.Same(t, runner, got)

	waitPhase(t, runner, attempt.PhaseInProgress)
	started := h.nextEvent(t)
	assert.Equal(t, events.AttemptStarted, started.Type)
	assert.Equal(t, "u1", started.UserID)
	assert.Equal(t, runner.ID(), started.AttemptID)

	require.NoError(t, runner.Answer(ctx, 0, 1))
	require.NoError(t, runner.Submit(ctx))
	<-runner.Done()

	completed := h.nextEvent(t)
	assert.Equal(t, events.AttemptCompleted, completed.Type)
	assert.True(t, completed.Passed)
	assert.Equal(t, string(attempt.TriggerUser), completed.Trigger)
	require.NotNil(t, completed.Result)
	assert.Equal(t, 2, completed.Result.Total)

	require.Eventually(t, func() bool { return h.store.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, err = h.service.Get(runner.ID())
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
}

func TestAbandonPublishesAbandoned(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scoreAll)

	runner, err := h.service.Start(ctx, "quiz-1", "u1", attempt.StaticStatus{IsVerified: true})
	require.NoError(t, err)
	waitPhase(t, runner, attempt.PhaseInProgress)
	assert.Equal(t, events.AttemptStarted, h.nextEvent(t).Type)

	require.NoError(t, h.service.Abandon(ctx, runner.ID()))

	abandoned := h.nextEvent(t)
	assert.Equal(t, events.AttemptAbandoned, abandoned.Type)
	assert.Equal(t, attempt.PhaseInProgress.String(), abandoned.Message)
	assert.ErrorIs(t, runner.Submit(ctx), domain.ErrAttemptClosed)
}

func TestUnverifiedUserIsInterrupted(t *testing.T) {
	h := newHarness(t, scoreAll)

	runner, err := h.service.Start(context.Background(), "quiz-1", "u2", attempt.StaticStatus{UserID: "u2"})
	require.NoError(t, err)
	<-runner.Done()

	assert.Equal(t, attempt.PhaseVerificationRequired, runner.Snapshot().Phase)
	evt := h.nextEvent(t)
	assert.Equal(t, events.AttemptVerificationRequired, evt.Type)
	assert.NotEmpty(t, evt.Message)
}

func TestUnknownQuizFails(t *testing.T) {
	h := newHarness(t, scoreAll)

	runner, err := h.service.Start(context.Background(), "missing", "u1", attempt.StaticStatus{IsVerified: true})
	require.NoError(t, err)
	<-runner.Done()

	evt := h.nextEvent(t)
	assert.Equal(t, events.AttemptFailed, evt.Type)
	assert.Equal(t, domain.KindNotFound, evt.ErrorKind)
	assert.Equal(t, "Quiz not found", evt.Message)
}

func TestStartValidationAndShutdown(t *testing.T) {
	h := newHarness(t, scoreAll)

	_, err := h.service.Start(context.Background(), "  ", "u1", attempt.StaticStatus{})
	assert.Equal(t, domain.KindValidation, domain.Classify(err))

	_, err = h.service.Get("nope")
	assert.ErrorIs(t, err, domain.ErrAttemptNotFound)
	assert.ErrorIs(t, h.service.Abandon(context.Background(), "nope"), domain.ErrAttemptNotFound)

	runner, err := h.service.Start(context.Background(), "quiz-1", "u1", attempt.StaticStatus{IsVerified: true})
	require.NoError(t, err)
	waitPhase(t, runner, attempt.PhaseInProgress)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.service.Shutdown(ctx))

	select {
	case <-runner.Done():
	default:
		t.Fatalf("runner still running after shutdown")
	}
	_, err = h.service.Start(context.Background(), "quiz-1", "u1", attempt.StaticStatus{IsVerified: true})
	assert.ErrorIs(t, err, app.ErrServiceClosed)
}
