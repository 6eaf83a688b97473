package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/maauso/clipper-api/internal/archive"
	"github.com/maauso/clipper-api/internal/clip"
	"github.com/maauso/clipper-api/internal/storage"
	"github.com/maauso/clipper-api/internal/webhook"
)

// ErrTaskPanicked reports a background task that panicked.
var ErrTaskPanicked = errors.New("task panicked")

// ClipRoute is the path prefix under which produced files are downloadable.
const ClipRoute = "/get-clip/"

// Pipeline is the clip processing port used by Service.
type Pipeline interface {
	Process(ctx context.Context, req clip.Request) ([]clip.Result, error)
}

// ProcessInput contains the input parameters for one clip request.
type ProcessInput struct {
	// Request is handed to the clip pipeline as is.
	Request clip.Request
	// WebhookURL selects background delivery when set.
	WebhookURL string
	// HostURL is the scheme and host used to build download links.
	HostURL string
}

// Outcome is what the caller receives synchronously.
type Outcome struct {
	Status          string    `json:"status"`
	TaskID          string    `json:"task_id"`
	ClipsURLs       []string  `json:"clips_urls,omitempty"`
	AudioURLs       []*string `json:"audio_urls,omitempty"`
	ArchiveURL      string    `json:"archive_url,omitempty"`
	ArchiveFilename string    `json:"archive_filename,omitempty"`
}

// Service accepts clip requests and delivers their results either in the
// response or, when a webhook URL is supplied, through a background task
// and a webhook notification.
type Service struct {
	pipeline  Pipeline
	store     storage.Storage
	remover   *storage.Remover
	repo      Repository
	runner    Runner
	notifier  webhook.Notifier
	logger    *slog.Logger
	publishS3 bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithS3Publishing uploads produced files to S3 and returns bucket URLs
// instead of local download links.
func WithS3Publishing(enabled bool) ServiceOption {
	return func(s *Service) {
		s.publishS3 = enabled
	}
}

// NewService creates a new Service.
func NewService(
	pipeline Pipeline,
	store storage.Storage,
	remover *storage.Remover,
	repo Repository,
	runner Runner,
	notifier webhook.Notifier,
	logger *slog.Logger,
	opts ...ServiceOption,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if remover == nil {
		remover = storage.NewRemover(store, logger)
	}
	s := &Service{
		pipeline: pipeline,
		store:    store,
		remover:  remover,
		repo:     repo,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetTask returns an in-flight task. Tasks are forgotten once terminal.
func (s *Service) GetTask(ctx context.Context, taskID string) (*Task, error) {
	return s.repo.FindByID(ctx, taskID)
}

// ListTasks returns every in-flight task, oldest first.
func (s *Service) ListTasks(ctx context.Context) ([]*Task, error) {
	tasks, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Process validates in and dispatches it. In sync mode it blocks until
// the clips are produced; in webhook mode it returns a "processing"
// acknowledgment at once. Uploaded inputs are removed on every path.
func (s *Service) Process(ctx context.Context, in ProcessInput) (*Outcome, error) {
	if err := s.validate(in); err != nil {
		s.cleanupInputs(ctx, in.Request)
		return nil, err
	}

	t := New(in.WebhookURL, len(in.Request.Windows))
	if err := s.repo.Save(ctx, t); err != nil {
		s.cleanupInputs(ctx, in.Request)
		return nil, fmt.Errorf("register task: %w", err)
	}

	s.logger.Info("task accepted",
		slog.String("task_id", t.ID),
		slog.String("mode", string(t.Mode)),
		slog.Int("windows", t.Windows),
		slog.String("format", string(in.Request.Format.Format)),
	)

	if t.Mode == ModeSync {
		return s.runSync(ctx, t, in)
	}

	err := s.runner.Go(ctx, "task-"+t.ID, func(ctx context.Context) {
		s.runBackground(ctx, t, in)
	})
	if err != nil {
		s.finish(ctx, t, nil, err)
		s.cleanupInputs(ctx, in.Request)
		return nil, err
	}

	return &Outcome{Status: webhook.StatusProcessing, TaskID: t.ID}, nil
}

func (s *Service) validate(in ProcessInput) error {
	if err := in.Request.Validate(); err != nil {
		return err
	}
	if in.WebhookURL != "" {
		if err := webhook.ValidateURL(in.WebhookURL); err != nil {
			return &clip.ValidationError{Field: "webhook_url", Err: err}
		}
	}
	return nil
}

func (s *Service) runSync(ctx context.Context, t *Task, in ProcessInput) (*Outcome, error) {
	defer s.cleanupInputs(ctx, in.Request)

	s.start(ctx, t)

	results, err := s.pipeline.Process(ctx, in.Request)
	if err != nil {
		s.finish(ctx, t, nil, err)
		return nil, err
	}

	var out *Outcome
	if in.Request.Audio.ExportAudio {
		out, err = s.deliverArchive(ctx, t.ID, results, in.HostURL)
	} else {
		out, err = s.deliverLinks(ctx, t.ID, results, in.HostURL, false)
	}
	if err != nil {
		s.finish(ctx, t, results, err)
		return nil, err
	}

	s.finish(ctx, t, results, nil)
	return out, nil
}

func (s *Service) runBackground(ctx context.Context, t *Task, in ProcessInput) {
	defer s.cleanupInputs(ctx, in.Request)

	s.start(ctx, t)

	var payload webhook.Payload
	results, out, err := s.produceLinks(ctx, t, in)
	if err != nil {
		payload = webhook.Failed(t.ID, clip.PublicMessage(err))
	} else {
		payload = webhook.Completed(t.ID, out.ClipsURLs, out.AudioURLs)
	}
	s.finish(ctx, t, results, err)

	if nerr := s.notifier.Notify(ctx, in.WebhookURL, payload); nerr != nil {
		s.logger.Error("webhook delivery failed",
			slog.String("task_id", t.ID),
			slog.String("status", payload.Status),
			slog.String("error", nerr.Error()),
		)
		return
	}
	s.logger.Info("webhook delivered",
		slog.String("task_id", t.ID),
		slog.String("status", payload.Status),
	)
}

// produceLinks runs the pipeline and publishes every output as a link.
// Webhook receivers iterate individual files, so results are never
// archived here. A panic is turned into ErrTaskPanicked so the task still
// fails and the webhook is still notified.
func (s *Service) produceLinks(ctx context.Context, t *Task, in ProcessInput) (results []clip.Result, out *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("background task panicked",
				slog.String("task_id", t.ID),
				slog.String("panic", fmt.Sprint(rec)),
				slog.String("stack", string(debug.Stack())),
			)
			s.remover.RemoveAll(context.WithoutCancel(ctx), append(clip.VideoPaths(results), clip.AudioPaths(results)...)...)
			results, out, err = nil, nil, fmt.Errorf("%w: %v", ErrTaskPanicked, rec)
		}
	}()

	results, err = s.pipeline.Process(ctx, in.Request)
	if err != nil {
		return nil, nil, err
	}
	out, err = s.deliverLinks(ctx, t.ID, results, in.HostURL, in.Request.Audio.ExportAudio)
	return results, out, err
}

// deliverLinks publishes every clip, and with withAudio the index-aligned
// exported audio, as download URLs.
func (s *Service) deliverLinks(ctx context.Context, taskID string, results []clip.Result, hostURL string, withAudio bool) (*Outcome, error) {
	out := &Outcome{
		Status:    webhook.StatusCompleted,
		TaskID:    taskID,
		ClipsURLs: make([]string, 0, len(results)),
	}
	if withAudio {
		out.AudioURLs = make([]*string, 0, len(results))
	}

	for _, r := range results {
		link, err := s.publish(ctx, r.VideoPath, hostURL)
		if err != nil {
			return nil, err
		}
		out.ClipsURLs = append(out.ClipsURLs, link)

		if !withAudio {
			continue
		}
		if r.AudioPath == "" {
			out.AudioURLs = append(out.AudioURLs, nil)
			continue
		}
		audioLink, err := s.publish(ctx, r.AudioPath, hostURL)
		if err != nil {
			return nil, err
		}
		out.AudioURLs = append(out.AudioURLs, &audioLink)
	}
	return out, nil
}

// deliverArchive bundles clips and exported audio into one zip. The bundled
// files are removed once archived. With nothing to bundle the outcome
// carries an empty clip list.
func (s *Service) deliverArchive(ctx context.Context, taskID string, results []clip.Result, hostURL string) (*Outcome, error) {
	files := append(clip.VideoPaths(results), clip.AudioPaths(results)...)
	files = s.store.ListExisting(files)

	name := "clips_" + taskID + ".zip"
	archivePath, err := archive.Build(files, name)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}
	if archivePath == "" {
		s.logger.Info("nothing to archive", slog.String("task_id", taskID))
		return &Outcome{Status: webhook.StatusCompleted, TaskID: taskID, ClipsURLs: []string{}}, nil
	}

	if fi, err := os.Stat(archivePath); err == nil {
		s.logger.Info("archive built",
			slog.String("task_id", taskID),
			slog.Int("files", len(files)),
			slog.String("size", humanize.Bytes(uint64(fi.Size()))),
		)
	}
	s.remover.RemoveAll(context.WithoutCancel(ctx), files...)

	link, err := s.publish(ctx, archivePath, hostURL)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Status:          webhook.StatusCompleted,
		TaskID:          taskID,
		ArchiveURL:      link,
		ArchiveFilename: filepath.Base(archivePath),
	}, nil
}

// publish returns the URL a produced file is reachable at: an S3 object
// when publishing is enabled, otherwise a download link on hostURL.
func (s *Service) publish(ctx context.Context, path, hostURL string) (string, error) {
	if !s.publishS3 {
		return DownloadURL(hostURL, path), nil
	}

	f, err := s.store.LoadTemp(ctx, path)
	if err != nil {
		return "", fmt.Errorf("open %s for upload: %w", filepath.Base(path), err)
	}
	link, err := s.store.UploadToS3(ctx, "clips/"+filepath.Base(path), f)
	_ = f.Close()
	if err != nil {
		return "", err
	}
	s.remover.Remove(context.WithoutCancel(ctx), path)
	return link, nil
}

// DownloadURL builds the retrieval link of a produced file on hostURL.
func DownloadURL(hostURL, path string) string {
	return strings.TrimRight(hostURL, "/") + ClipRoute + url.PathEscape(filepath.Base(path))
}

func (s *Service) start(ctx context.Context, t *Task) {
	if err := t.Start(); err != nil {
		s.logger.Warn("unexpected task transition",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
	_ = s.repo.Save(ctx, t)
}

// finish moves t to its terminal state and drops it from the registry.
func (s *Service) finish(ctx context.Context, t *Task, results []clip.Result, err error) {
	if err != nil {
		_ = t.Fail(clip.PublicMessage(err))
		level := slog.LevelError
		if clip.IsValidation(err) || errors.Is(err, ErrRunnerClosed) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "task failed",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	} else {
		_ = t.Complete(len(results))
		s.logger.Info("task completed",
			slog.String("task_id", t.ID),
			slog.Int("clips", len(results)),
			slog.Duration("elapsed", t.Elapsed()),
		)
	}
	_ = s.repo.Delete(ctx, t.ID)
}

// cleanupInputs removes the uploaded source and background track.
func (s *Service) cleanupInputs(ctx context.Context, req clip.Request) {
	s.remover.RemoveAll(context.WithoutCancel(ctx), req.SourcePath, req.BackgroundPath)
}
