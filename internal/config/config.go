package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/reviewplanner/internal/database"
	"github.com/example/reviewplanner/internal/logging"
	"github.com/example/reviewplanner/internal/scheduler"
	sr "github.com/example/reviewplanner/internal/spaced_repetition"
)

// Config holds all configuration for the application
type Config struct {
	Database   database.Config          `mapstructure:"database"`
	Telegram   TelegramConfig           `mapstructure:"telegram"`
	Redis      RedisConfig              `mapstructure:"redis"`
	Reminder   scheduler.ReminderConfig `mapstructure:"reminder"`
	Scheduling SchedulingConfig         `mapstructure:"scheduling"`
	SM2        sr.Config                `mapstructure:"sm2"`
	Log        logging.Config           `mapstructure:"log"`
}

// TelegramConfig holds bot credentials
type TelegramConfig struct {
	Token    string  `mapstructure:"token"`
	AdminIDs []int64 `mapstructure:"admin_ids"`
}

// RedisConfig holds plan cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// SchedulingConfig holds planner settings
type SchedulingConfig struct {
	MaxItemsPerDay   int    `mapstructure:"max_items_per_day"`
	MaxLookaheadDays int    `mapstructure:"max_lookahead_days"`
	Timezone         string `mapstructure:"timezone"`
	PlanDays         int    `mapstructure:"plan_days"`
}

// Location resolves the configured timezone.
func (s SchedulingConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduling timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// Load reads an optional .env file and then environment variables.
// An explicit path that does not exist is an error; the default .env is optional.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c *Config) Validate() error {
	if c.Scheduling.MaxItemsPerDay <= 0 {
		return fmt.Errorf("scheduling.max_items_per_day must be positive, got %d", c.Scheduling.MaxItemsPerDay)
	}
	if c.Scheduling.PlanDays <= 0 {
		return fmt.Errorf("scheduling.plan_days must be positive, got %d", c.Scheduling.PlanDays)
	}
	if _, err := c.Scheduling.Location(); err != nil {
		return err
	}
	if err := c.SM2.Validate(); err != nil {
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.dsn", "data/reviewplanner.db")

	// Telegram defaults
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", []int64{})

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	// Reminder defaults
	v.SetDefault("reminder.enabled", true)
	v.SetDefault("reminder.start_hour", scheduler.DefaultReminderStartHour)
	v.SetDefault("reminder.end_hour", scheduler.DefaultReminderEndHour)
	v.SetDefault("reminder.every_minutes", scheduler.DefaultReminderEvery)

	// Scheduling defaults
	v.SetDefault("scheduling.max_items_per_day", 20)
	v.SetDefault("scheduling.max_lookahead_days", scheduler.DefaultMaxLookaheadDays)
	v.SetDefault("scheduling.timezone", "UTC")
	v.SetDefault("scheduling.plan_days", 7)

	// SM-2 defaults
	sm2 := sr.DefaultConfig()
	v.SetDefault("sm2.initial_ease_factor", sm2.InitialEaseFactor)
	v.SetDefault("sm2.min_ease_factor", sm2.MinEaseFactor)
	v.SetDefault("sm2.ease_factor_modifier", sm2.EaseFactorModifier)
	v.SetDefault("sm2.first_interval_days", sm2.FirstIntervalDays)
	v.SetDefault("sm2.second_interval_days", sm2.SecondIntervalDays)
	v.SetDefault("sm2.disable_jitter", sm2.DisableJitter)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
