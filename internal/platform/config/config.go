package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	AppURL      string `env:"APP_URL"`
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// Without REDIS_URL the server runs on the in-memory store seeded from CATALOG_FILE,
	// or from the built-in demo catalog when that is empty too.
	CatalogFile        string        `env:"CATALOG_FILE"`
	DefaultWallpaperID string        `env:"DEFAULT_WALLPAPER_ID"`
	ApplyDelay         time.Duration `env:"APPLY_DELAY" default:"0s"`

	DefaultPreviewLimit int `env:"DEFAULT_PREVIEW_LIMIT" default:"5"`
	MaxPreviewLimit     int `env:"MAX_PREVIEW_LIMIT" default:"50"`
	MaxRecentWallpapers int `env:"MAX_RECENT_WALLPAPERS" default:"50"`

	WriteRateLimit float64 `env:"WRITE_RATE_LIMIT" default:"2"`
	WriteRateBurst int     `env:"WRITE_RATE_BURST" default:"5"`

	SnapshotKeep          int           `env:"SNAPSHOT_KEEP" default:"100"`
	SnapshotPruneInterval time.Duration `env:"SNAPSHOT_PRUNE_INTERVAL" default:"1h"`
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

// MemoryMode reports whether the server keeps selection state in process.
func (c *Config) MemoryMode() bool {
	return c.RedisURL == ""
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func validate(cfg *Config) error {
	switch cfg.AppEnv {
	case "development", "production", "test":
	default:
		return fmt.Errorf("APP_ENV must be development, production, or test, got %q", cfg.AppEnv)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.IsProduction() && cfg.MemoryMode() {
		return errors.New("REDIS_URL is required in production")
	}

	if cfg.MaxPreviewLimit < 1 {
		return errors.New("MAX_PREVIEW_LIMIT must be at least 1")
	}
	if cfg.DefaultPreviewLimit < 1 || cfg.DefaultPreviewLimit > cfg.MaxPreviewLimit {
		return fmt.Errorf("DEFAULT_PREVIEW_LIMIT must be between 1 and MAX_PREVIEW_LIMIT (%d)", cfg.MaxPreviewLimit)
	}
	if cfg.MaxRecentWallpapers < 1 {
		return errors.New("MAX_RECENT_WALLPAPERS must be at least 1")
	}

	if cfg.WriteRateLimit <= 0 {
		return errors.New("WRITE_RATE_LIMIT must be positive")
	}
	if cfg.WriteRateBurst < 1 {
		return errors.New("WRITE_RATE_BURST must be at least 1")
	}

	if cfg.SnapshotKeep < 2 {
		return errors.New("SNAPSHOT_KEEP must be at least 2 so the previous selection can be restored")
	}
	if cfg.SnapshotPruneInterval <= 0 {
		return errors.New("SNAPSHOT_PRUNE_INTERVAL must be positive")
	}
	if cfg.ApplyDelay < 0 {
		return errors.New("APPLY_DELAY must not be negative")
	}

	return nil
}
