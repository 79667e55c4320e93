package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultSecondsPerQuestion = 120

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Backend struct {
		BaseURL string `yaml:"baseURL"`
		Timeout string `yaml:"timeout"`
		Token   string `yaml:"token"`
	} `yaml:"backend"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                string `yaml:"ttl"`
		SecondsPerQuestion int    `yaml:"secondsPerQuestion"`
	} `yaml:"quiz"`
	Events struct {
		KafkaBrokers []string `yaml:"kafkaBrokers"`
		Topic        string   `yaml:"topic"`
	} `yaml:"events"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file leaves the defaults in place.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if cfg.Quiz.SecondsPerQuestion <= 0 {
		cfg.Quiz.SecondsPerQuestion = DefaultSecondsPerQuestion
	}
	return cfg, nil
}

func Default() Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Backend.BaseURL = "http://127.0.0.1:3000/api"
	cfg.Backend.Timeout = "10s"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.SecondsPerQuestion = DefaultSecondsPerQuestion
	cfg.Events.Topic = "quiz.attempts"
	cfg.Log.Mode = "dev"
	return cfg
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Server.Port, "PORT")
	setFromEnv(&cfg.Backend.BaseURL, "BACKEND_URL")
	setFromEnv(&cfg.Backend.Token, "BACKEND_TOKEN")
	setFromEnv(&cfg.Redis.Addr, "REDIS_ADDR")
	setFromEnv(&cfg.Postgres.URL, "POSTGRES_URL")
	setFromEnv(&cfg.Log.Mode, "LOG_MODE")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Events.KafkaBrokers = splitList(brokers)
	}
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
