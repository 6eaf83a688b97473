package bootstrap

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipper-api/internal/config"
	"github.com/maauso/clipper-api/internal/storage"
)

func TestNewDependencies_LocalStorage(t *testing.T) {
	cfg := &config.Config{
		Port:              8080,
		TempDir:           t.TempDir(),
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		RemoveMaxAttempts: 3,
		RemoveBackoffMs:   10,
		WebhookTimeoutSec: 5,
		WebhookMaxRetries: 1,
		MaxUploadMB:       16,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := NewDependencies(cfg, logger)
	require.NoError(t, err)

	_, isLocal := deps.Store.(*storage.LocalStorage)
	assert.True(t, isLocal)
	assert.NotNil(t, deps.Pipeline)
	assert.NotNil(t, deps.Service)
	assert.NotNil(t, deps.Runner)

	rec := httptest.NewRecorder()
	deps.Router(cfg, logger).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, deps.Runner.Wait(t.Context()))
}
