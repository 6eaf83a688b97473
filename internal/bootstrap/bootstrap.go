// Package bootstrap provides dependency initialization for the clip API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/maauso/clipper-api/internal/asset"
	"github.com/maauso/clipper-api/internal/clip"
	"github.com/maauso/clipper-api/internal/config"
	"github.com/maauso/clipper-api/internal/media"
	"github.com/maauso/clipper-api/internal/server"
	"github.com/maauso/clipper-api/internal/storage"
	"github.com/maauso/clipper-api/internal/task"
	"github.com/maauso/clipper-api/internal/webhook"
)

// Dependencies holds all initialized dependencies of the application.
type Dependencies struct {
	Store     storage.Storage
	Remover   *storage.Remover
	Processor *media.FFmpegProcessor
	Pipeline  *clip.Pipeline
	Runner    *task.BackgroundRunner
	Service   *task.Service
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	remover := storage.NewRemover(store, logger,
		storage.WithMaxAttempts(cfg.RemoveMaxAttempts),
		storage.WithBackoff(cfg.RemoveBackoff()),
	)

	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, media.WithFFprobePath(cfg.FFprobePath))
	pipeline := clip.NewPipeline(processor, processor, store, remover, logger)

	notifier := webhook.NewClient(
		webhook.WithTimeout(cfg.WebhookTimeout()),
		webhook.WithMaxRetries(cfg.WebhookMaxRetries),
	)
	runner := task.NewBackgroundRunner(logger)

	svc := task.NewService(
		pipeline,
		store,
		remover,
		task.NewMemoryRepository(),
		runner,
		notifier,
		logger,
		task.WithS3Publishing(cfg.S3Enabled()),
	)

	return &Dependencies{
		Store:     store,
		Remover:   remover,
		Processor: processor,
		Pipeline:  pipeline,
		Runner:    runner,
		Service:   svc,
	}, nil
}

// Router builds the HTTP handler serving the API.
func (d *Dependencies) Router(cfg *config.Config, logger *slog.Logger) http.Handler {
	fetcher := asset.NewFetcher(d.Store, logger, asset.WithTimeout(cfg.MusicFetchTimeout()))

	handlers := server.NewHandlers(
		d.Service,
		fetcher,
		d.Store,
		d.Remover,
		logger,
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
		server.WithPublicURL(cfg.PublicURL),
	)
	return server.NewRouter(handlers, logger, server.DefaultConfig())
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
