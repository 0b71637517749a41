package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config is the full service configuration surface.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Offline  OfflineConfig
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
	Metrics  bool   `env:"METRICS_ENABLED" env-default:"true"`
}

type ServerConfig struct {
	Addr           string   `env:"APP_ADDR" env-default:":8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

type DatabaseConfig struct {
	Path          string `env:"SQLITE_PATH" env-default:"clamflow.db"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`
}

type AuthConfig struct {
	SessionTTL    time.Duration `env:"SESSION_TTL" env-default:"12h"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`
}

// OfflineConfig drives the retry drainer of the offline upload queue.
type OfflineConfig struct {
	RetrySchedule string `env:"OFFLINE_RETRY_SCHEDULE" env-default:"@every 1m"`
}

// Load reads an optional env file, then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required fields are populated and the retry schedule parses.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("APP_ADDR must be provided")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("SQLITE_PATH must be provided")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if _, err := cron.ParseStandard(c.Offline.RetrySchedule); err != nil {
		return fmt.Errorf("OFFLINE_RETRY_SCHEDULE: %w", err)
	}
	return nil
}
