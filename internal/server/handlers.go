package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/clipper-api/internal/asset"
	"github.com/maauso/clipper-api/internal/audio"
	"github.com/maauso/clipper-api/internal/clip"
	"github.com/maauso/clipper-api/internal/media"
	"github.com/maauso/clipper-api/internal/storage"
	"github.com/maauso/clipper-api/internal/task"
	"github.com/maauso/clipper-api/internal/webhook"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling file parts to disk.
const multipartMemory = 32 << 20

// Dispatcher is the task service port used by the handlers.
type Dispatcher interface {
	Process(ctx context.Context, in task.ProcessInput) (*task.Outcome, error)
	GetTask(ctx context.Context, taskID string) (*task.Task, error)
	ListTasks(ctx context.Context) ([]*task.Task, error)
}

// MusicFetcher downloads background music given by URL.
type MusicFetcher interface {
	Fetch(ctx context.Context, rawURL string) asset.Result
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	dispatcher     Dispatcher
	fetcher        MusicFetcher
	store          storage.Storage
	remover        *storage.Remover
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
	publicURL      string
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of a POST /process body.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithPublicURL fixes the scheme and host used in download links instead
// of deriving them from each request.
func WithPublicURL(u string) HandlerOption {
	return func(h *Handlers) {
		h.publicURL = strings.TrimRight(u, "/")
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	dispatcher Dispatcher,
	fetcher MusicFetcher,
	store storage.Storage,
	remover *storage.Remover,
	logger *slog.Logger,
	opts ...HandlerOption,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if remover == nil {
		remover = storage.NewRemover(store, logger)
	}
	h := &Handlers{
		dispatcher:     dispatcher,
		fetcher:        fetcher,
		store:          store,
		remover:        remover,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: 2048 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Process handles POST /process requests.
func (h *Handlers) Process(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With(slog.String("request_id", middleware.GetReqID(ctx)))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				"upload exceeds "+humanize.IBytes(uint64(h.maxUploadBytes)), "UPLOAD_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form, err := parseProcessForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FORM")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if err := clip.ValidateWindows(form.Timestamps); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	spec, err := formatSpec(form)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	videoPath, err := h.saveUpload(ctx, r, "video", logger)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "video file is required", "MISSING_VIDEO")
			return
		}
		logger.Error("failed to save upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save upload", "UPLOAD_FAILED")
		return
	}

	musicPath, err := h.backgroundMusic(ctx, r, form.MusicURL, logger)
	if err != nil {
		h.remover.Remove(ctx, videoPath)
		logger.Error("failed to save background music", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to save upload", "UPLOAD_FAILED")
		return
	}

	opts := audio.Options{
		VideoVolume: form.VideoVolume,
		MusicVolume: form.MusicVolume,
		LoopMusic:   form.LoopMusic,
		ExportAudio: form.ExportAudio,
	}
	out, err := h.dispatcher.Process(ctx, task.ProcessInput{
		Request: clip.Request{
			SourcePath:     videoPath,
			Windows:        form.Timestamps,
			Format:         spec,
			Audio:          opts,
			BackgroundPath: musicPath,
		},
		WebhookURL: form.WebhookURL,
		HostURL:    h.hostURL(r),
	})
	if err != nil {
		h.writeProcessError(w, err, logger)
		return
	}

	status := http.StatusOK
	if out.Status == webhook.StatusProcessing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, out)
}

// GetClip handles GET /get-clip/{filename} requests.
func (h *Handlers) GetClip(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		writeError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
		return
	}

	path := h.store.Path(name)
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || !fi.Mode().IsRegular() {
		writeError(w, http.StatusNotFound, "clip not found", "CLIP_NOT_FOUND")
		return
	}

	if mtype, err := mimetype.DetectReader(f); err == nil {
		w.Header().Set("Content-Type", mtype.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read clip", "CLIP_READ_FAILED")
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

// GetTask handles GET /tasks/{id} requests.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "task ID is required", "MISSING_TASK_ID")
		return
	}

	found, err := h.dispatcher.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get task",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task", "TASK_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newTaskResponse(found))
}

// ListTasks handles GET /tasks requests.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.dispatcher.ListTasks(r.Context())
	if err != nil {
		h.logger.Error("failed to list tasks", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tasks", "TASK_LIST_FAILED")
		return
	}

	resp := TaskListResponse{Tasks: make([]TaskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func newTaskResponse(t *task.Task) TaskResponse {
	return TaskResponse{
		TaskID:    t.ID,
		Status:    string(t.Status),
		Mode:      string(t.Mode),
		Windows:   t.Windows,
		Clips:     t.Clips,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
		StartedAt: t.StartedAt,
	}
}

func (h *Handlers) writeProcessError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var perr *clip.ProcessingError
	switch {
	case clip.IsValidation(err):
		writeError(w, http.StatusBadRequest, clip.PublicMessage(err), "VALIDATION_ERROR")
	case errors.As(err, &perr):
		writeError(w, http.StatusInternalServerError, clip.PublicMessage(err), "PROCESSING_FAILED")
	case errors.Is(err, task.ErrRunnerClosed):
		writeError(w, http.StatusServiceUnavailable, "server is shutting down", "SHUTTING_DOWN")
	default:
		logger.Error("failed to process request", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, clip.PublicMessage(err), "PROCESSING_FAILED")
	}
}

// saveUpload stores the multipart file field in temp storage.
func (h *Handlers) saveUpload(ctx context.Context, r *http.Request, field string, logger *slog.Logger) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	path, err := h.store.SaveTemp(ctx, header.Filename, file)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", field, err)
	}
	logger.Info("upload saved",
		slog.String("field", field),
		slog.String("filename", header.Filename),
		slog.String("size", humanize.Bytes(uint64(header.Size))),
	)
	return path, nil
}

// backgroundMusic returns the uploaded background_music file or, failing
// that, the downloaded music_url. A failed download yields "" and no error.
func (h *Handlers) backgroundMusic(ctx context.Context, r *http.Request, musicURL string, logger *slog.Logger) (string, error) {
	path, err := h.saveUpload(ctx, r, "background_music", logger)
	switch {
	case err == nil:
		return path, nil
	case !errors.Is(err, http.ErrMissingFile):
		return "", err
	case musicURL == "" || h.fetcher == nil:
		return "", nil
	}

	res := h.fetcher.Fetch(ctx, musicURL)
	if !res.OK() {
		return "", nil
	}
	return res.Path, nil
}

// hostURL returns the base for download links.
func (h *Handlers) hostURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// parseProcessForm reads the form fields, applying the documented defaults
// for absent ones.
func parseProcessForm(r *http.Request) (ProcessForm, error) {
	opts := audio.DefaultOptions()
	form := ProcessForm{
		Format:     strings.TrimSpace(r.FormValue("format")),
		MusicURL:   strings.TrimSpace(r.FormValue("music_url")),
		WebhookURL: strings.TrimSpace(r.FormValue("webhook_url")),
	}

	raw := r.FormValue("timestamps")
	if raw == "" {
		return form, errors.New("timestamps is required")
	}
	if err := json.Unmarshal([]byte(raw), &form.Timestamps); err != nil {
		return form, fmt.Errorf("invalid timestamps format: %w", err)
	}

	var err error
	if form.VideoVolume, err = formFloat(r.MultipartForm, "video_volume", opts.VideoVolume); err != nil {
		return form, err
	}
	if form.MusicVolume, err = formFloat(r.MultipartForm, "music_volume", opts.MusicVolume); err != nil {
		return form, err
	}
	if form.LoopMusic, err = formBool(r.MultipartForm, "loop_music", opts.LoopMusic); err != nil {
		return form, err
	}
	if form.ExportAudio, err = formBool(r.MultipartForm, "export_audio", opts.ExportAudio); err != nil {
		return form, err
	}
	if form.CustomWidth, err = formInt(r.MultipartForm, "custom_width"); err != nil {
		return form, err
	}
	if form.CustomHeight, err = formInt(r.MultipartForm, "custom_height"); err != nil {
		return form, err
	}
	return form, nil
}

func formatSpec(form ProcessForm) (media.FormatSpec, error) {
	format := media.DefaultFormat
	if form.Format != "" {
		f, err := media.ParseFormat(form.Format)
		if err != nil {
			return media.FormatSpec{}, err
		}
		format = f
	}
	spec := media.FormatSpec{Format: format, Width: form.CustomWidth, Height: form.CustomHeight}
	return spec, spec.Validate()
}

func formValue(mf *multipart.Form, key string) (string, bool) {
	if mf == nil || len(mf.Value[key]) == 0 {
		return "", false
	}
	v := strings.TrimSpace(mf.Value[key][0])
	return v, v != ""
}

func formFloat(mf *multipart.Form, key string, def float64) (float64, error) {
	v, ok := formValue(mf, key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

func formBool(mf *multipart.Form, key string, def bool) (bool, error) {
	v, ok := formValue(mf, key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", key)
	}
	return b, nil
}

func formInt(mf *multipart.Form, key string) (int, error) {
	v, ok := formValue(mf, key)
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
