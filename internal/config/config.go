// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside the valid TCP range.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidRemoveAttempts is returned when REMOVE_MAX_ATTEMPTS is not positive.
	ErrInvalidRemoveAttempts = errors.New("config: REMOVE_MAX_ATTEMPTS must be positive")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port        int    `env:"PORT, default=8080" json:"port"`
	PublicURL   string `env:"PUBLIC_URL" json:"public_url,omitempty"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB, default=2048" json:"max_upload_mb"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/clipper" json:"temp_dir"`

	// Media tooling
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// File lifecycle
	RemoveMaxAttempts int `env:"REMOVE_MAX_ATTEMPTS, default=3" json:"remove_max_attempts"`
	RemoveBackoffMs   int `env:"REMOVE_BACKOFF_MS, default=500" json:"remove_backoff_ms"`

	// Outbound HTTP
	WebhookTimeoutSec    int `env:"WEBHOOK_TIMEOUT_SEC, default=30" json:"webhook_timeout_sec"`
	WebhookMaxRetries    int `env:"WEBHOOK_MAX_RETRIES, default=3" json:"webhook_max_retries"`
	MusicFetchTimeoutSec int `env:"MUSIC_FETCH_TIMEOUT_SEC, default=60" json:"music_fetch_timeout_sec"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RemoveBackoff returns the fixed wait between file deletion attempts.
func (c *Config) RemoveBackoff() time.Duration {
	return time.Duration(c.RemoveBackoffMs) * time.Millisecond
}

// WebhookTimeout returns the per-attempt timeout for webhook deliveries.
func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSec) * time.Second
}

// MusicFetchTimeout returns the timeout for background music downloads.
func (c *Config) MusicFetchTimeout() time.Duration {
	return time.Duration(c.MusicFetchTimeoutSec) * time.Second
}

// MaxUploadBytes returns the multipart body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.RemoveMaxAttempts < 1 {
		return ErrInvalidRemoveAttempts
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, PublicURL: %s, TempDir: %s, FFmpegPath: %s, FFprobePath: %s, RemoveMaxAttempts: %d, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.PublicURL,
		c.TempDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.RemoveMaxAttempts,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
