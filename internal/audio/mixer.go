package audio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/maauso/clipper-api/internal/media"
)

// Track identifies one audio stream feeding the mix.
type Track struct {
	// Stream is the ffmpeg stream specifier, e.g. "0:a:0".
	Stream string
	// Duration of the track in seconds.
	Duration float64
}

// Kind describes what the clip's soundtrack will be made of.
type Kind int

const (
	// KindNone means the clip has no audio at all.
	KindNone Kind = iota
	// KindOriginal keeps the clip's own track untouched.
	KindOriginal
	// KindMusic replaces a silent clip's audio with the scaled background track.
	KindMusic
	// KindComposite sums the scaled original and background tracks.
	KindComposite
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindOriginal:
		return "original"
	case KindMusic:
		return "music"
	case KindComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Plan is the result of Mix: a filter graph fragment producing the
// media.AudioOutputLabel pad plus the input-side loop count it relies on.
type Plan struct {
	Kind Kind
	// Filter is the audio part of the filter_complex graph. Empty for
	// KindNone and KindOriginal.
	Filter string
	// Loops is the number of extra repetitions of the background input
	// (ffmpeg -stream_loop).
	Loops int
	// Length is the duration, in seconds, the background track is trimmed to.
	Length float64
}

// Mix decides how subclip and background combine for a clip of clipDuration
// seconds. Either track may be nil. The inputs are only read.
func Mix(subclip, background *Track, opts Options, clipDuration float64) Plan {
	if background == nil {
		if subclip == nil {
			return Plan{Kind: KindNone}
		}
		return Plan{Kind: KindOriginal}
	}

	loops, length := fitBackground(background.Duration, clipDuration, opts.LoopMusic)

	music := fmt.Sprintf("[%s]atrim=duration=%s,asetpts=PTS-STARTPTS,volume=%s",
		background.Stream, formatSeconds(length), formatVolume(opts.MusicVolume))

	if subclip == nil {
		return Plan{
			Kind:   KindMusic,
			Filter: music + "[" + media.AudioOutputLabel + "]",
			Loops:  loops,
			Length: length,
		}
	}

	filter := strings.Join([]string{
		fmt.Sprintf("[%s]volume=%s[a_src]", subclip.Stream, formatVolume(opts.VideoVolume)),
		music + "[a_bg]",
		// normalize=0 keeps amix from dividing by the input count, so the
		// output is the plain sample-wise sum of the two scaled tracks.
		"[a_src][a_bg]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[" + media.AudioOutputLabel + "]",
	}, ";")

	return Plan{
		Kind:   KindComposite,
		Filter: filter,
		Loops:  loops,
		Length: length,
	}
}

// fitBackground returns how many extra loops of a background track of
// bgDuration seconds are needed, and the length it is trimmed to.
func fitBackground(bgDuration, clipDuration float64, loop bool) (int, float64) {
	if bgDuration <= 0 {
		return 0, clipDuration
	}
	if loop && bgDuration < clipDuration {
		return int(math.Ceil(clipDuration/bgDuration)) - 1, clipDuration
	}
	return 0, math.Min(bgDuration, clipDuration)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
