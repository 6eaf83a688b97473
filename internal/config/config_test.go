package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"PORT", "PUBLIC_URL", "MAX_UPLOAD_MB", "TEMP_DIR", "FFMPEG_PATH", "FFPROBE_PATH",
	"REMOVE_MAX_ATTEMPTS", "REMOVE_BACKOFF_MS", "WEBHOOK_TIMEOUT_SEC", "WEBHOOK_MAX_RETRIES",
	"MUSIC_FETCH_TIMEOUT_SEC", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
	"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "LOG_FORMAT", "LOG_LEVEL",
}

// clearEnv unsets every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/clipper", cfg.TempDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 3, cfg.RemoveMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.RemoveBackoff())
	assert.Equal(t, 30*time.Second, cfg.WebhookTimeout())
	assert.Equal(t, 3, cfg.WebhookMaxRetries)
	assert.Equal(t, time.Minute, cfg.MusicFetchTimeout())
	assert.Equal(t, int64(2048)<<20, cfg.MaxUploadBytes())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "3000")
	t.Setenv("PUBLIC_URL", "https://clips.example.com")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("REMOVE_MAX_ATTEMPTS", "5")
	t.Setenv("REMOVE_BACKOFF_MS", "250")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "https://clips.example.com", cfg.PublicURL)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, 5, cfg.RemoveMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RemoveBackoff())
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_InvalidInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET", "bucket-without-region")

	_, err := Load()
	assert.ErrorIs(t, err, ErrS3RegionRequired)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 8080, RemoveMaxAttempts: 3}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("port out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Port = 70000
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)
	})

	t.Run("zero remove attempts", func(t *testing.T) {
		cfg := valid()
		cfg.RemoveMaxAttempts = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidRemoveAttempts)
	})

	t.Run("bucket without region", func(t *testing.T) {
		cfg := valid()
		cfg.S3Bucket = "bucket"
		assert.ErrorIs(t, cfg.Validate(), ErrS3RegionRequired)
	})
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		TempDir:            "/tmp/test",
		S3Bucket:           "bucket",
		AWSAccessKeyID:     "access-key-id",
		AWSSecretAccessKey: "secret-key",
	}

	str := cfg.String()

	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")

	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "access-key-id")
}

func TestConfig_NewLogger(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		t.Run(format, func(t *testing.T) {
			cfg := &Config{LogFormat: format, LogLevel: "warn"}
			logger := cfg.NewLogger()
			require.NotNil(t, logger)
			assert.False(t, logger.Enabled(t.Context(), slog.LevelInfo))
			assert.True(t, logger.Enabled(t.Context(), slog.LevelWarn))
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
