package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "BACKEND_URL", "BACKEND_TOKEN", "REDIS_ADDR", "POSTGRES_URL", "KAFKA_BROKERS", "LOG_MODE"} {
		t.Setenv(key, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
	if cfg.Quiz.SecondsPerQuestion != DefaultSecondsPerQuestion {
		t.Fatalf("expected %d seconds per question, got %d", DefaultSecondsPerQuestion, cfg.Quiz.SecondsPerQuestion)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
server:
  port: "9000"
backend:
  baseURL: http://backend:3000/api
redis:
  addr: localhost:6379
quiz:
  ttl: 5m
  secondsPerQuestion: 30
events:
  kafkaBrokers: [k1:9092]
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Backend.BaseURL != "http://backend:3000/api" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("env override not applied, got %q", cfg.Redis.Addr)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Quiz.SecondsPerQuestion != 30 {
		t.Fatalf("expected 30 seconds per question, got %d", cfg.Quiz.SecondsPerQuestion)
	}
	if got := TTLDuration(cfg.Quiz.TTL, time.Minute); got != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %v", got)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("empty: got %v", got)
	}
	if got := TTLDuration("nonsense", time.Second); got != time.Second {
		t.Fatalf("invalid: got %v", got)
	}
}
