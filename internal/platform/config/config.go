package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Decode policies for malformed bus payloads.
const (
	DecodePolicySkip = "skip"
	DecodePolicyFail = "fail"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	AppURL      string `env:"APP_URL"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	PlanetsChannel    string `env:"PLANETS_CHANNEL" default:"planets"`
	RelayDecodePolicy string `env:"RELAY_DECODE_POLICY" default:"skip"`

	MaxStreamConnections      int           `env:"MAX_STREAM_CONNECTIONS" default:"10000"`
	MaxStreamConnectionsPerIP int           `env:"MAX_STREAM_CONNECTIONS_PER_IP" default:"20"`
	SinkBufferSize            int           `env:"SINK_BUFFER_SIZE" default:"64"`
	SSEHeartbeatInterval      time.Duration `env:"SSE_HEARTBEAT_INTERVAL" default:"15s"`

	PlanetCacheTTL      time.Duration `env:"PLANET_CACHE_TTL" default:"10m"`
	CreateRatePerSecond float64       `env:"CREATE_RATE_PER_SECOND" default:"5"`
	CreateRateBurst     int           `env:"CREATE_RATE_BURST" default:"10"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := []struct{ name, value string }{
		{"DATABASE_URL", cfg.DatabaseURL},
		{"REDIS_URL", cfg.RedisURL},
		{"PLANETS_CHANNEL", cfg.PlanetsChannel},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}

	switch cfg.RelayDecodePolicy {
	case DecodePolicySkip, DecodePolicyFail:
	default:
		return fmt.Errorf("RELAY_DECODE_POLICY must be %q or %q, got %q", DecodePolicySkip, DecodePolicyFail, cfg.RelayDecodePolicy)
	}

	if cfg.MaxStreamConnections < 1 {
		return fmt.Errorf("MAX_STREAM_CONNECTIONS must be positive, got %d", cfg.MaxStreamConnections)
	}
	if cfg.MaxStreamConnectionsPerIP < 1 {
		return fmt.Errorf("MAX_STREAM_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxStreamConnectionsPerIP)
	}
	if cfg.SinkBufferSize < 1 {
		return fmt.Errorf("SINK_BUFFER_SIZE must be positive, got %d", cfg.SinkBufferSize)
	}
	if cfg.SSEHeartbeatInterval <= 0 {
		return fmt.Errorf("SSE_HEARTBEAT_INTERVAL must be positive, got %s", cfg.SSEHeartbeatInterval)
	}

	if cfg.AppEnv == "production" {
		if mode := sslMode(cfg.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
