package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"quiz-attempt-service/internal/platform/logger"
)

// Publisher emits attempt lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event *AttemptEvent) error
	Close() error
}

// WatermillPublisher publishes attempt events as JSON messages on a single topic.
type WatermillPublisher struct {
	publisher message.Publisher
	logger    *logger.Logger
	topic     string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func NewWatermillPublisher(pub message.Publisher, topic string, log *logger.Logger) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WatermillPublisher{publisher: pub, logger: log, topic: topic}
}

// NewKafkaPublisher publishes to a Kafka cluster.
func NewKafkaPublisher(cfg KafkaConfig, log *logger.Logger) (*WatermillPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.Brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, NewLoggerAdapter(log))
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	return NewWatermillPublisher(pub, cfg.Topic, log), nil
}

// NewChannelPublisher publishes in-process. Subscribers attach through the returned GoChannel.
func NewChannelPublisher(topic string, log *logger.Logger) (*WatermillPublisher, *gochannel.GoChannel) {
	if log == nil {
		log = logger.Nop()
	}
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, NewLoggerAdapter(log))
	return NewWatermillPublisher(ch, topic, log), ch
}

func (p *WatermillPublisher) Publish(ctx context.Context, event *AttemptEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal attempt event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("attempt_id", event.AttemptID)
	msg.Metadata.Set("source", event.Source)
	msg.Metadata.Set("version", event.Version)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.logger.Error("publish attempt event failed", "event_id", event.ID, "event_type", event.Type, "error", err)
		return fmt.Errorf("publish attempt event: %w", err)
	}
	p.logger.Debug("published attempt event", "event_id", event.ID, "event_type", event.Type, "topic", p.topic)
	return nil
}

func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, *AttemptEvent) error { return nil }
func (Discard) Close() error                                 { return nil }

// zapAdapter lets watermill components log through the service logger.
type zapAdapter struct {
	log *logger.Logger
}

func NewLoggerAdapter(log *logger.Logger) watermill.LoggerAdapter {
	return zapAdapter{log: log}
}

func (a zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.log.Error(msg, append(flatten(fields), "error", err)...)
}

func (a zapAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Info(msg, flatten(fields)...)
}

func (a zapAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, flatten(fields)...)
}

// Trace is folded into debug; zap has no lower level.
func (a zapAdapter) Trace(msg string, fields watermill.LogFields) {
	a.log.Debug(msg, flatten(fields)...)
}

func (a zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zapAdapter{log: a.log.With(flatten(fields)...)}
}

func flatten(fields watermill.LogFields) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	return kv
}
