// Package clip cuts, reframes and re-scores time windows of a source video.
package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/clipper-api/internal/audio"
	"github.com/maauso/clipper-api/internal/media"
	"github.com/maauso/clipper-api/internal/storage"
	"github.com/maauso/clipper-api/internal/task/id"
)

// Stream specifiers of the encode inputs: the source is input 0 and the
// optional background track is input 1.
const (
	sourceAudioStream     = "0:a:0"
	backgroundAudioStream = "1:a:0"
)

// Request is one pipeline invocation over a source already on local storage.
type Request struct {
	SourcePath     string
	Windows        []Window
	Format         media.FormatSpec
	Audio          audio.Options
	BackgroundPath string
}

// Result is the output of one processed window. WindowIndex refers to the
// request's window list so video and audio stay aligned with it.
type Result struct {
	WindowIndex int
	Window      Window
	VideoPath   string
	// AudioPath is empty when no audio was exported for the window.
	AudioPath string
}

// AudioPaths returns the exported audio path of every result, with an empty
// entry where a clip had no audio, preserving result order.
func AudioPaths(results []Result) []string {
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.AudioPath
	}
	return paths
}

// VideoPaths returns the clip path of every result in order.
func VideoPaths(results []Result) []string {
	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.VideoPath
	}
	return paths
}

// Pipeline processes the windows of a request one after the other.
type Pipeline struct {
	prober    media.Prober
	processor media.Processor
	store     storage.Storage
	remover   *storage.Remover
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. Outputs are written next to store's temp files.
func NewPipeline(
	prober media.Prober,
	processor media.Processor,
	store storage.Storage,
	remover *storage.Remover,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if remover == nil {
		remover = storage.NewRemover(store, logger)
	}
	return &Pipeline{
		prober:    prober,
		processor: processor,
		store:     store,
		remover:   remover,
		logger:    logger,
	}
}

// Validate checks a request before any media is opened.
func (r Request) Validate() error {
	if r.SourcePath == "" {
		return &ValidationError{Field: "video", Err: errors.New("source path is required")}
	}
	if err := ValidateWindows(r.Windows); err != nil {
		return err
	}
	if err := r.Format.Validate(); err != nil {
		return &ValidationError{Field: "format", Err: err}
	}
	if err := r.Audio.Validate(); err != nil {
		return &ValidationError{Field: "audio", Err: err}
	}
	return nil
}

// Process runs every window of req and returns one Result per window that
// was not skipped. Any failure aborts the call, removes the clips produced
// so far and is returned as a *ProcessingError.
func (p *Pipeline) Process(ctx context.Context, req Request) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	background := p.openBackground(ctx, req.BackgroundPath)
	if background != nil {
		defer p.closeHandle(background)
	}

	results := make([]Result, 0, len(req.Windows))
	for i, w := range req.Windows {
		res, ok, err := p.processWindow(ctx, i, w, req, background)
		if err != nil {
			p.discard(context.WithoutCancel(ctx), results)
			p.logger.Error("clip processing failed",
				slog.Int("window", i),
				slog.String("source", req.SourcePath),
				slog.String("error", err.Error()),
			)
			return nil, &ProcessingError{Index: i, Err: err}
		}
		if !ok {
			p.logger.Info("skipping window beyond end of source",
				slog.Int("window", i),
				slog.Float64("start", w.Start),
			)
			continue
		}
		results = append(results, res)
	}

	p.logger.Info("clips processed",
		slog.Int("requested", len(req.Windows)),
		slog.Int("produced", len(results)),
		slog.String("format", string(req.Format.Format)),
	)
	return results, nil
}

// processWindow handles one window on its own freshly opened handle.
// ok is false when the window lies beyond the end of the source.
func (p *Pipeline) processWindow(
	ctx context.Context,
	index int,
	w Window,
	req Request,
	background *media.Handle,
) (res Result, ok bool, err error) {
	h, err := media.Open(ctx, p.prober, req.SourcePath)
	if err != nil {
		return Result{}, false, err
	}
	defer p.closeHandle(h)

	bounded, ok := w.Clamp(h.Duration())
	if !ok {
		return Result{}, false, nil
	}
	duration := bounded.Duration()
	info := h.Info()

	outputID := id.Generate()
	videoPath, err := h.Scratch(p.store.Path("clip_" + outputID + ".mp4"))
	if err != nil {
		return Result{}, false, err
	}

	var audioPath string
	if req.Audio.ExportAudio && info.HasAudio {
		if audioPath, err = h.Scratch(p.store.Path("audio_" + outputID + ".m4a")); err != nil {
			return Result{}, false, err
		}
		if err := p.processor.ExportAudio(ctx, h.Path(), audioPath, bounded.Start, duration); err != nil {
			return Result{}, false, fmt.Errorf("export audio: %w", err)
		}
	}

	geometry, err := media.GeometryFor(req.Format, info.Width, info.Height)
	if err != nil {
		return Result{}, false, fmt.Errorf("geometry: %w", err)
	}

	spec := media.ClipSpec{
		Source:   h.Path(),
		Start:    bounded.Start,
		Duration: duration,
		Geometry: geometry,
		Output:   videoPath,
	}
	plan := p.mix(info, background, req.Audio, duration)
	switch plan.Kind {
	case audio.KindOriginal:
		spec.KeepSourceAudio = true
	case audio.KindMusic, audio.KindComposite:
		spec.BackgroundPath = background.Path()
		spec.BackgroundLoops = plan.Loops
		spec.AudioFilter = plan.Filter
	}

	p.logger.Debug("encoding clip",
		slog.Int("window", index),
		slog.Float64("start", bounded.Start),
		slog.Float64("duration", duration),
		slog.String("audio", plan.Kind.String()),
		slog.String("video_filter", geometry.Filter()),
	)

	if err := p.processor.EncodeClip(ctx, spec); err != nil {
		return Result{}, false, fmt.Errorf("encode: %w", err)
	}

	h.Keep(videoPath)
	if audioPath != "" {
		h.Keep(audioPath)
	}

	return Result{
		WindowIndex: index,
		Window:      bounded,
		VideoPath:   videoPath,
		AudioPath:   audioPath,
	}, true, nil
}

func (p *Pipeline) mix(info media.Info, background *media.Handle, opts audio.Options, duration float64) audio.Plan {
	var subclip, bg *audio.Track
	if info.HasAudio {
		subclip = &audio.Track{Stream: sourceAudioStream, Duration: duration}
	}
	if background != nil {
		bg = &audio.Track{Stream: backgroundAudioStream, Duration: background.Duration()}
	}
	return audio.Mix(subclip, bg, opts, duration)
}

// openBackground probes the background track once per invocation. A track
// that cannot be read, or carries no audio, is dropped with a warning.
func (p *Pipeline) openBackground(ctx context.Context, path string) *media.Handle {
	if path == "" {
		return nil
	}
	h, err := media.Open(ctx, p.prober, path)
	if err != nil {
		p.logger.Warn("ignoring unreadable background music",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !h.Info().HasAudio {
		p.logger.Warn("ignoring background music without audio stream",
			slog.String("path", path),
		)
		p.closeHandle(h)
		return nil
	}
	return h
}

func (p *Pipeline) closeHandle(h *media.Handle) {
	if err := h.Close(); err != nil {
		p.logger.Warn("failed to release media handle",
			slog.String("path", h.Path()),
			slog.String("error", err.Error()),
		)
	}
}

// discard removes outputs of windows that completed before a failure.
// ctx must outlive the failed call, which may have died of cancellation.
func (p *Pipeline) discard(ctx context.Context, results []Result) {
	for _, r := range results {
		p.remover.RemoveAll(ctx, r.VideoPath, r.AudioPath)
	}
}
