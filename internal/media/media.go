// Package media provides source inspection, exclusive media handles,
// aspect-ratio geometry and ffmpeg-based clip encoding.
package media

import "context"

// Prober inspects a media file without decoding it.
type Prober interface {
	// Probe returns duration, frame size and audio presence for path.
	Probe(ctx context.Context, path string) (Info, error)
}

// Processor encodes clips and standalone audio tracks.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// EncodeClip renders the bounded subclip described by spec into spec.Output,
	// applying its geometry and audio graph.
	EncodeClip(ctx context.Context, spec ClipSpec) error

	// ExportAudio writes the original audio of src between start and
	// start+duration into dst as a standalone track.
	ExportAudio(ctx context.Context, src, dst string, start, duration float64) error
}

// ClipSpec describes one encode of a subclip.
type ClipSpec struct {
	// Source is the input video path (ffmpeg input 0).
	Source string
	// Start is the subclip offset in seconds.
	Start float64
	// Duration is the subclip length in seconds.
	Duration float64
	// Geometry is the crop/scale applied to the video stream.
	Geometry Geometry
	// BackgroundPath is an optional audio file (ffmpeg input 1).
	BackgroundPath string
	// BackgroundLoops is how many extra times input 1 is repeated.
	BackgroundLoops int
	// AudioFilter is a filter_complex fragment producing the [aout] label.
	// Empty means no mixing.
	AudioFilter string
	// KeepSourceAudio maps the source audio unchanged when AudioFilter is empty.
	KeepSourceAudio bool
	// Output is the destination file.
	Output string
}

// AudioOutputLabel is the filter graph label EncodeClip maps as the audio stream.
const AudioOutputLabel = "aout"
