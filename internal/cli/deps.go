package cli

import (
	"context"
	"net/http"
	"time"

	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/events"
	"quiz-attempt-service/internal/infra/backend"
	"quiz-attempt-service/internal/platform/logger"
)

func loadConfig(path, tokenFlag string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if tokenFlag != "" {
		cfg.Backend.Token = tokenFlag
	}
	return cfg, nil
}

func newBackendClient(cfg config.Config) *backend.Client {
	timeout := config.TTLDuration(cfg.Backend.Timeout, 10*time.Second)
	return backend.NewClient(cfg.Backend.BaseURL, &http.Client{Timeout: timeout})
}

// withCredentials carries the configured token, if any, into ctx.
func withCredentials(ctx context.Context, cfg config.Config) context.Context {
	if cfg.Backend.Token == "" {
		return ctx
	}
	return backend.WithToken(ctx, cfg.Backend.Token)
}

// newPublisher publishes to Kafka when brokers are configured, otherwise in-process.
func newPublisher(cfg config.Config, log *logger.Logger) (events.Publisher, error) {
	if len(cfg.Events.KafkaBrokers) == 0 {
		pub, _ := events.NewChannelPublisher(cfg.Events.Topic, log)
		return pub, nil
	}
	return events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.Events.KafkaBrokers,
		Topic:   cfg.Events.Topic,
	}, log)
}
