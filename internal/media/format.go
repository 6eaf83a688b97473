package media

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownFormat is returned by ParseFormat for unrecognised names.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is the output framing applied to every clip.
type Format string

const (
	// FormatShorts is vertical 9:16.
	FormatShorts Format = "shorts"
	// FormatVideo is landscape 16:9.
	FormatVideo Format = "video"
	// FormatSquare is 1:1.
	FormatSquare Format = "square"
	// FormatCinema is 21:9.
	FormatCinema Format = "cinema"
	// FormatFilm is 2.35:1.
	FormatFilm Format = "film"
	// FormatOriginal keeps the source frame untouched.
	FormatOriginal Format = "original"
	// FormatCustom resizes to caller supplied dimensions.
	FormatCustom Format = "custom"
)

// DefaultFormat is used when a request names no format.
const DefaultFormat = FormatFilm

var displayNames = map[Format]string{
	FormatShorts:   "Shorts (9:16)",
	FormatVideo:    "Video (16:9)",
	FormatSquare:   "Square (1:1)",
	FormatCinema:   "Cinema (21:9)",
	FormatFilm:     "Film (2.35:1)",
	FormatOriginal: "Original",
	FormatCustom:   "Custom",
}

var ratios = map[Format]float64{
	FormatShorts: 9.0 / 16.0,
	FormatVideo:  16.0 / 9.0,
	FormatSquare: 1.0,
	FormatCinema: 21.0 / 9.0,
	FormatFilm:   2.35,
}

// ParseFormat accepts either the short key ("shorts") or the display
// name ("Shorts (9:16)"), case-insensitively.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimSpace(s)
	for f, display := range displayNames {
		if strings.EqualFold(s, string(f)) || strings.EqualFold(s, display) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// String returns the display name.
func (f Format) String() string {
	if d, ok := displayNames[f]; ok {
		return d
	}
	return string(f)
}

// Ratio returns the target width/height ratio for named formats.
func (f Format) Ratio() (float64, bool) {
	r, ok := ratios[f]
	return r, ok
}

// FormatSpec is a Format plus the explicit size used by FormatCustom.
type FormatSpec struct {
	Format Format
	Width  int
	Height int
}

// Validate checks that custom formats carry positive dimensions.
func (s FormatSpec) Validate() error {
	if _, ok := displayNames[s.Format]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFormat, s.Format)
	}
	if s.Format == FormatCustom && (s.Width <= 0 || s.Height <= 0) {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, s.Width, s.Height)
	}
	return nil
}

// Axis selects which dimension a resolution floor applies to.
type Axis int

const (
	AxisNone Axis = iota
	AxisWidth
	AxisHeight
)

// Floor is a minimum output resolution on one axis. Frames already at or
// above the minimum are never scaled, so a Floor can only upscale.
type Floor struct {
	Axis Axis
	Min  int
}

var floors = map[Format]Floor{
	FormatShorts: {Axis: AxisHeight, Min: 1920},
	FormatVideo:  {Axis: AxisWidth, Min: 1920},
	FormatSquare: {Axis: AxisWidth, Min: 1080},
}

// Floor returns the resolution floor of f; cinema, film, original and
// custom have none.
func (f Format) Floor() Floor {
	return floors[f]
}

// Rect is a crop window in source pixels.
type Rect struct {
	W, H, X, Y int
}

// Geometry is the crop and resize applied to a clip's frames.
// Zero values mean "leave untouched".
type Geometry struct {
	Crop   Rect
	ScaleW int
	ScaleH int
}

// IsIdentity reports whether no crop or scale is applied.
func (g Geometry) IsIdentity() bool {
	return g.Crop == (Rect{}) && g.ScaleW == 0 && g.ScaleH == 0
}

// OutputSize returns the frame size after the geometry is applied to a
// width x height source.
func (g Geometry) OutputSize(width, height int) (int, int) {
	if g.ScaleW > 0 && g.ScaleH > 0 {
		return g.ScaleW, g.ScaleH
	}
	if g.Crop.W > 0 && g.Crop.H > 0 {
		return g.Crop.W, g.Crop.H
	}
	return width, height
}

// Filter renders the geometry as an ffmpeg video filter chain.
func (g Geometry) Filter() string {
	var parts []string
	if g.Crop.W > 0 && g.Crop.H > 0 {
		parts = append(parts, fmt.Sprintf("crop=%d:%d:%d:%d", g.Crop.W, g.Crop.H, g.Crop.X, g.Crop.Y))
	}
	if g.ScaleW > 0 && g.ScaleH > 0 {
		parts = append(parts, fmt.Sprintf("scale=%d:%d", g.ScaleW, g.ScaleH))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(append(parts, "setsar=1"), ",")
}

// GeometryFor resolves spec against a width x height source frame.
// ORIGINAL yields the identity, CUSTOM a direct resize, and named ratios
// a centred crop followed by the format's resolution floor.
func GeometryFor(spec FormatSpec, width, height int) (Geometry, error) {
	switch spec.Format {
	case FormatOriginal:
		return Geometry{}, nil
	case FormatCustom:
		if spec.Width <= 0 || spec.Height <= 0 {
			return Geometry{}, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, spec.Width, spec.Height)
		}
		return Geometry{ScaleW: spec.Width, ScaleH: spec.Height}, nil
	}

	ratio, ok := spec.Format.Ratio()
	if !ok {
		return Geometry{}, fmt.Errorf("%w: %q", ErrUnknownFormat, spec.Format)
	}
	return FitRatio(width, height, ratio, spec.Format.Floor())
}

// FitRatio crops a width x height frame symmetrically to ratio and then
// applies floor. Dimensions are kept even for 4:2:0 encoders, which keeps
// the result within one pixel of the exact ratio.
func FitRatio(width, height int, ratio float64, floor Floor) (Geometry, error) {
	if width <= 0 || height <= 0 {
		return Geometry{}, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return Geometry{}, fmt.Errorf("invalid ratio %v", ratio)
	}

	maxW, maxH := evenFloor(width), evenFloor(height)
	cropW, cropH := maxW, maxH
	if float64(width)/float64(height) > ratio {
		// Source is wider than target: trim the sides.
		cropW = min(evenRound(float64(maxH)*ratio), maxW)
	} else {
		// Source is taller than target: trim top and bottom.
		cropH = min(evenRound(float64(maxW)/ratio), maxH)
	}

	var g Geometry
	if cropW != width || cropH != height {
		g.Crop = Rect{
			W: cropW,
			H: cropH,
			X: (width - cropW) / 2,
			Y: (height - cropH) / 2,
		}
	}

	switch floor.Axis {
	case AxisHeight:
		if cropH < floor.Min {
			g.ScaleH = floor.Min
			g.ScaleW = evenRound(float64(floor.Min) * ratio)
		}
	case AxisWidth:
		if cropW < floor.Min {
			g.ScaleW = floor.Min
			g.ScaleH = evenRound(float64(floor.Min) / ratio)
		}
	}

	return g, nil
}

// evenRound rounds v to the nearest even integer, never below 2.
func evenRound(v float64) int {
	n := 2 * int(math.Round(v/2))
	if n < 2 {
		return 2
	}
	return n
}

// evenFloor rounds n down to an even integer, never below 2.
func evenFloor(n int) int {
	n -= n % 2
	if n < 2 {
		return 2
	}
	return n
}
