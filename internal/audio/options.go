// Package audio plans how a clip's original track and an optional background
// track are combined into the clip's final soundtrack.
package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidVolume is returned when a volume multiplier is negative or not finite.
var ErrInvalidVolume = errors.New("audio: volume must be a finite number >= 0")

// Options controls audio handling for every clip of one request.
type Options struct {
	// VideoVolume scales the clip's original track before mixing.
	// Default: 1.0.
	VideoVolume float64

	// MusicVolume scales the background track before mixing.
	// Default: 0.2.
	MusicVolume float64

	// LoopMusic repeats a background track shorter than the clip until it
	// covers the whole clip. Default: true.
	LoopMusic bool

	// ExportAudio writes each clip's original audio to a standalone file.
	// Default: false.
	ExportAudio bool
}

// DefaultOptions returns the default audio options.
func DefaultOptions() Options {
	return Options{
		VideoVolume: 1.0,
		MusicVolume: 0.2,
		LoopMusic:   true,
	}
}

// Validate checks that both volume multipliers are usable.
func (o Options) Validate() error {
	if !validVolume(o.VideoVolume) {
		return fmt.Errorf("%w: video_volume=%v", ErrInvalidVolume, o.VideoVolume)
	}
	if !validVolume(o.MusicVolume) {
		return fmt.Errorf("%w: music_volume=%v", ErrInvalidVolume, o.MusicVolume)
	}
	return nil
}

func validVolume(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
