package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/platform/logger"
)

func TestChannelPublisher_DeliversJSONWithMetadata(t *testing.T) {
	pub, ch := NewChannelPublisher("", logger.Nop())
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := ch.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	evt := NewAttemptEvent(AttemptCompleted, "att-1", "quiz-1", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	evt.Result = &domain.Result{Score: 4, Total: 5, Percentage: 80}
	evt.Passed = true
	require.NoError(t, pub.Publish(ctx, evt))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, evt.ID, msg.UUID)
		assert.Equal(t, string(AttemptCompleted), msg.Metadata.Get("event_type"))
		assert.Equal(t, "att-1", msg.Metadata.Get("attempt_id"))

		var got AttemptEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "quiz-1", got.QuizID)
		assert.True(t, got.Passed)
		require.NotNil(t, got.Result)
		assert.Equal(t, 4, got.Result.Score)
		assert.Equal(t, source, got.Source)
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestNewAttemptEvent_AssignsUniqueIDs(t *testing.T) {
	now := time.Now()
	a := NewAttemptEvent(AttemptStarted, "a", "q", now)
	b := NewAttemptEvent(AttemptStarted, "a", "q", now)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, version, a.Version)
	assert.Equal(t, time.UTC, a.Timestamp.Location())
}

func TestDiscard(t *testing.T) {
	var p Publisher = Discard{}
	assert.NoError(t, p.Publish(context.Background(), NewAttemptEvent(AttemptFailed, "a", "q", time.Now())))
	assert.NoError(t, p.Close())
}

func TestLoggerAdapter_ForwardsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewLoggerAdapter(&logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	adapter.With(watermill.LogFields{"topic": "t"}).Info("subscribed", watermill.LogFields{"n": 1})
	adapter.Error("boom", assert.AnError, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "t", entries[0].ContextMap()["topic"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["n"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
