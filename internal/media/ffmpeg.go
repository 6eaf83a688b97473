package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrMissingOutput is returned when an encode has no destination.
	ErrMissingOutput = errors.New("output path is required")
)

// Encoding defaults. The codec choice is fixed; the preset favours
// throughput over file size.
const (
	VideoCodec   = "libx264"
	VideoPreset  = "ultrafast"
	VideoCRF     = 23
	FrameRate    = 24
	PixelFormat  = "yuv420p"
	AudioCodec   = "aac"
	AudioBitrate = "192k"
)

// FFmpegProcessor implements Processor and Prober using the ffmpeg CLI.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
}

// ProcessorOption configures an FFmpegProcessor.
type ProcessorOption func(*FFmpegProcessor)

// WithFFprobePath overrides the ffprobe binary.
func WithFFprobePath(path string) ProcessorOption {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...ProcessorOption) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: "ffprobe"}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EncodeClip renders one subclip with libx264/aac at a fixed frame rate.
func (p *FFmpegProcessor) EncodeClip(ctx context.Context, spec ClipSpec) error {
	args, err := buildClipArgs(spec)
	if err != nil {
		return err
	}
	return p.runFFmpeg(ctx, args)
}

// ExportAudio writes the first audio stream of the [start, start+duration)
// window of src to dst as AAC.
func (p *FFmpegProcessor) ExportAudio(ctx context.Context, src, dst string, start, duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidDuration, duration)
	}
	if dst == "" {
		return ErrMissingOutput
	}

	args := []string{
		"-y", // Overwrite output file
		"-hide_banner",
		"-ss", formatSeconds(start), // Seek before decoding
		"-t", formatSeconds(duration),
		"-i", src,
		"-vn",           // Drop video
		"-map", "0:a:0", // First audio stream only
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		dst,
	}
	return p.runFFmpeg(ctx, args)
}

// buildClipArgs assembles the ffmpeg command line for spec.
// Input 0 is the source seeked to Start and bounded by Duration; input 1,
// when present, is the background track repeated BackgroundLoops times.
func buildClipArgs(spec ClipSpec) ([]string, error) {
	if spec.Duration <= 0 {
		return nil, fmt.Errorf("%w: got %.3f", ErrInvalidDuration, spec.Duration)
	}
	if spec.Output == "" {
		return nil, ErrMissingOutput
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-ss", formatSeconds(spec.Start),
		"-t", formatSeconds(spec.Duration),
		"-i", spec.Source,
	}

	if spec.BackgroundPath != "" {
		if spec.BackgroundLoops > 0 {
			args = append(args, "-stream_loop", strconv.Itoa(spec.BackgroundLoops))
		}
		args = append(args, "-i", spec.BackgroundPath)
	}

	var graph []string
	videoOut := "0:v:0"
	if vf := spec.Geometry.Filter(); vf != "" {
		graph = append(graph, "[0:v:0]"+vf+"[vout]")
		videoOut = "[vout]"
	}
	if spec.AudioFilter != "" {
		graph = append(graph, spec.AudioFilter)
	}
	if len(graph) > 0 {
		args = append(args, "-filter_complex", strings.Join(graph, ";"))
	}

	args = append(args, "-map", videoOut)

	hasAudio := true
	switch {
	case spec.AudioFilter != "":
		args = append(args, "-map", "["+AudioOutputLabel+"]")
	case spec.KeepSourceAudio:
		args = append(args, "-map", "0:a:0?")
	default:
		hasAudio = false
	}

	args = append(args,
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", strconv.Itoa(VideoCRF),
		"-pix_fmt", PixelFormat,
		"-r", strconv.Itoa(FrameRate),
	)
	if hasAudio {
		args = append(args, "-c:a", AudioCodec, "-b:a", AudioBitrate)
	} else {
		args = append(args, "-an")
	}

	args = append(args,
		"-t", formatSeconds(spec.Duration), // Looped music never outlasts the clip
		"-movflags", "+faststart",
		spec.Output,
	)
	return args, nil
}

// formatSeconds renders seconds with millisecond precision for ffmpeg.
func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var (
	_ Processor = (*FFmpegProcessor)(nil)
	_ Prober    = (*FFmpegProcessor)(nil)
)
