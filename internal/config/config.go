// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds every setting the binaries read from the environment.
type Config struct {
	Env            string   `env:"MOVIEMATCH_ENV" envDefault:"development"`
	Port           int      `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	StoreBackend   string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"moviematch:"`
	DatabaseURL    string `env:"DATABASE_URL"`

	PublishActions  bool   `env:"PUBLISH_ACTIONS" envDefault:"false"`
	ActionQueueName string `env:"ACTION_QUEUE_NAME" envDefault:"moviematch_actions"`

	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	HistorianBatchSize int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	HistorianFlushMs   int           `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
	RoomInactivity     time.Duration `env:"ROOM_INACTIVITY_TIMEOUT" envDefault:"30m"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if c.HistorianBatchSize <= 0 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive")
	}
	if c.HistorianFlushMs <= 0 {
		return fmt.Errorf("HISTORIAN_FLUSH_MS must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Production reports whether MOVIEMATCH_ENV is "production".
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Origins returns the CORS origins to allow. Outside production any origin
// is accepted.
func (c *Config) Origins() []string {
	if !c.Production() {
		return []string{"https://*", "http://*"}
	}
	var out []string
	for _, o := range c.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// ListenAddr binds to all hosts in production and to localhost otherwise.
func (c *Config) ListenAddr() string {
	if c.Production() {
		return fmt.Sprintf(":%d", c.Port)
	}
	return fmt.Sprintf("localhost:%d", c.Port)
}

// Level returns the parsed LOG_LEVEL.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// HistorianFlushDelay is HISTORIAN_FLUSH_MS as a duration.
func (c *Config) HistorianFlushDelay() time.Duration {
	return time.Duration(c.HistorianFlushMs) * time.Millisecond
}
