// Package daemon manages the VibeLoop daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all daemon configuration.
type Config struct {
	API           APIConfig           `toml:"api" envPrefix:"API_"`
	Store         StoreConfig         `toml:"store" envPrefix:"STORE_"`
	Rules         RulesConfig         `toml:"rules" envPrefix:"RULES_"`
	Applier       ApplierConfig       `toml:"applier" envPrefix:"APPLIER_"`
	Seasonal      SeasonalConfig      `toml:"seasonal" envPrefix:"SEASONAL_"`
	Catalog       CatalogConfig       `toml:"catalog" envPrefix:"CATALOG_"`
	Notifications NotificationsConfig `toml:"notifications" envPrefix:"NOTIFICATIONS_"`
	Logging       LoggingConfig       `toml:"logging" envPrefix:"LOGGING_"`
	Telemetry     TelemetryConfig     `toml:"telemetry" envPrefix:"TELEMETRY_"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host       string  `toml:"host" env:"HOST"`
	Port       int     `toml:"port" env:"PORT"`
	RateLimit  float64 `toml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst  int     `toml:"rate_burst" env:"RATE_BURST"`
	AdminToken string  `toml:"admin_token" env:"ADMIN_TOKEN"`
}

// StoreConfig selects the ledger store driver.
type StoreConfig struct {
	Driver      string `toml:"driver" env:"DRIVER"` // sqlite | postgres | memory
	Dir         string `toml:"dir" env:"DIR"`
	PostgresURL string `toml:"postgres_url" env:"POSTGRES_URL"`
	MaxConns    int32  `toml:"max_conns" env:"MAX_CONNS"`
}

// RulesConfig holds the XP reward table.
type RulesConfig struct {
	XPForMoodLog  int64 `toml:"xp_for_mood_log" env:"XP_FOR_MOOD_LOG"`
	XPForSongPlay int64 `toml:"xp_for_song_play" env:"XP_FOR_SONG_PLAY"`
	XPPerLevel    int64 `toml:"xp_per_level" env:"XP_PER_LEVEL"`
}

// ApplierConfig bounds ledger transaction retries.
type ApplierConfig struct {
	MaxAttempts    uint   `toml:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialBackoff string `toml:"initial_backoff" env:"INITIAL_BACKOFF"`
	MaxBackoff     string `toml:"max_backoff" env:"MAX_BACKOFF"`
}

// SeasonalConfig controls the scheduled seasonal sweep.
type SeasonalConfig struct {
	Enabled       bool   `toml:"enabled" env:"ENABLED"`
	Schedule      string `toml:"schedule" env:"SCHEDULE"`
	Timeout       string `toml:"timeout" env:"TIMEOUT"`
	RunOnStart    bool   `toml:"run_on_start" env:"RUN_ON_START"`
	PageSize      int    `toml:"page_size" env:"PAGE_SIZE"`
	Concurrency   int    `toml:"concurrency" env:"CONCURRENCY"`
	Participation string `toml:"participation" env:"PARTICIPATION"` // always | active_during_season
}

// CatalogConfig points at an optional TOML badge and season catalog.
type CatalogConfig struct {
	File string `toml:"file" env:"FILE"`
}

// NotificationsConfig controls toast delivery.
type NotificationsConfig struct {
	Enabled    bool   `toml:"enabled" env:"ENABLED"`
	MaxPerDay  int    `toml:"max_per_day" env:"MAX_PER_DAY"`
	QuietStart string `toml:"quiet_start" env:"QUIET_START"` // "HH:MM" UTC
	QuietEnd   string `toml:"quiet_end" env:"QUIET_END"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	File string `toml:"file" env:"FILE"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus" env:"PROMETHEUS"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	home := vibeloopHome()
	return Config{
		API: APIConfig{
			Host:      "127.0.0.1",
			Port:      8787,
			RateLimit: 20,
			RateBurst: 40,
		},
		Store: StoreConfig{
			Driver:   "sqlite",
			Dir:      home,
			MaxConns: 10,
		},
		Rules: RulesConfig{
			XPForMoodLog:  10,
			XPForSongPlay: 5,
			XPPerLevel:    100,
		},
		Applier: ApplierConfig{
			MaxAttempts:    5,
			InitialBackoff: "50ms",
			MaxBackoff:     "2s",
		},
		Seasonal: SeasonalConfig{
			Enabled:       true,
			Schedule:      "0 0 * * *",
			Timeout:       "30m",
			PageSize:      200,
			Concurrency:   4,
			Participation: "always",
		},
		Notifications: NotificationsConfig{
			Enabled:   true,
			MaxPerDay: 10,
		},
		Logging: LoggingConfig{
			File: filepath.Join(home, "vibeloop.log"),
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads ~/.vibeloop/config.toml over the defaults, then applies
// .env and VIBELOOP_* environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := ConfigPath()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "VIBELOOP_"}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if c.Rules.XPPerLevel <= 0 {
		return fmt.Errorf("rules.xp_per_level must be positive")
	}
	for name, v := range map[string]string{
		"applier.initial_backoff": c.Applier.InitialBackoff,
		"applier.max_backoff":     c.Applier.MaxBackoff,
		"seasonal.timeout":        c.Seasonal.Timeout,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// SaveConfig writes the config to ~/.vibeloop/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ConfigPath is the location of config.toml.
func ConfigPath() string {
	return filepath.Join(vibeloopHome(), "config.toml")
}

// vibeloopHome returns the VibeLoop data directory.
func vibeloopHome() string {
	if dir := os.Getenv("VIBELOOP_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vibeloop")
}

// Home is exported for use by other packages.
func Home() string {
	return vibeloopHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
