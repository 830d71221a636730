package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// Config keeps runtime settings for the bot and the HTTP API.
type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	DatabaseURL   string `envconfig:"DATABASE_URL" default:"deadline_tracker.db"`
	HTTPAddr      string `envconfig:"HTTP_ADDR" default:":8080"`
	Timezone      string `envconfig:"TIMEZONE" default:"Local"`

	ReminderScanInterval time.Duration `envconfig:"REMINDER_SCAN_INTERVAL" default:"1m"`
	DigestTime           string        `envconfig:"DIGEST_TIME" default:"09:00"`

	// live countdown messages in the bot
	CountdownRefresh time.Duration `envconfig:"COUNTDOWN_REFRESH" default:"1s"`
	CountdownWatch   time.Duration `envconfig:"COUNTDOWN_WATCH" default:"2m"`

	SeedDemoData bool   `envconfig:"SEED_DEMO_DATA" default:"true"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv processes the environment without touching .env.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("read env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.HTTPAddr = strings.TrimSpace(cfg.HTTPAddr)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "deadline_tracker.db"
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.TelegramToken == "" && c.HTTPAddr == "" {
		return errors.New("either TELEGRAM_TOKEN or HTTP_ADDR is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.ReminderScanInterval <= 0 {
		return fmt.Errorf("REMINDER_SCAN_INTERVAL must be positive, got %s", c.ReminderScanInterval)
	}
	if c.CountdownRefresh <= 0 {
		return fmt.Errorf("COUNTDOWN_REFRESH must be positive, got %s", c.CountdownRefresh)
	}
	if c.CountdownWatch <= 0 {
		return fmt.Errorf("COUNTDOWN_WATCH must be positive, got %s", c.CountdownWatch)
	}
	if _, err := time.Parse("15:04", c.DigestTime); err != nil {
		return fmt.Errorf("DIGEST_TIME must be HH:MM, got %q", c.DigestTime)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Location resolves TIMEZONE. Deadlines typed without a zone are read in it.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Level() (zapcore.Level, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return level, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func (c Config) BotEnabled() bool  { return c.TelegramToken != "" }
func (c Config) HTTPEnabled() bool { return c.HTTPAddr != "" }
