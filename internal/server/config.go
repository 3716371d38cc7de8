package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

const (
	defaultPort            = ":8080"
	defaultMaxMessageSize  = 4096
	defaultSendQueueSize   = 256
	defaultRateLimitBurst  = 20
	defaultRefillInterval  = time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// RateLimitConfig defines the parameters for per-connection event rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string
	AllowedOrigins  []string
	MaxMessageSize  int64
	SendQueueSize   int
	RateLimit       RateLimitConfig
	ShutdownTimeout time.Duration
	LogLevel        string
}

type envConfig struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	SendQueueSize   int           `env:"SEND_QUEUE_SIZE,default=256"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=20"`
	RefillInterval  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendQueueSize:  defaultSendQueueSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateLimitBurst,
			RefillInterval: defaultRefillInterval,
		},
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
	}
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables keep their defaults; values that fail to parse are an error.
func NewConfigFromEnv() (*Config, error) {
	var raw envConfig
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg := Config{
		Port:           raw.Port,
		AllowedOrigins: parseOrigins(raw.AllowedOrigins),
		MaxMessageSize: raw.MaxMessageSize,
		SendQueueSize:  raw.SendQueueSize,
		RateLimit: RateLimitConfig{
			Burst:          raw.RateLimitBurst,
			RefillInterval: raw.RefillInterval,
		},
		ShutdownTimeout: raw.ShutdownTimeout,
		LogLevel:        raw.LogLevel,
	}
	cfg = cfg.sanitized()
	return &cfg, nil
}

// sanitized replaces non-positive or empty settings with their defaults.
func (c Config) sanitized() Config {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = defaultMaxMessageSize
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaultSendQueueSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateLimitBurst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = defaultRefillInterval
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
