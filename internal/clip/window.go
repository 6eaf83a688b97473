package clip

import (
	"fmt"
	"math"
)

// Window is one requested time range of the source, in seconds.
type Window struct {
	Start float64 `json:"start_time"`
	End   float64 `json:"end_time"`
}

// Duration returns End - Start.
func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Clamp bounds w to a source of sourceDuration seconds. It returns false
// when the window starts at or after the end of the source and must be skipped.
func (w Window) Clamp(sourceDuration float64) (Window, bool) {
	if w.Start >= sourceDuration {
		return Window{}, false
	}
	return Window{Start: w.Start, End: math.Min(w.End, sourceDuration)}, true
}

// ValidateWindows rejects an empty list and any window that is not a
// forward range starting at or after zero.
func ValidateWindows(windows []Window) error {
	if len(windows) == 0 {
		return &ValidationError{Field: "timestamps", Err: ErrNoWindows}
	}
	for i, w := range windows {
		if !finite(w.Start) || !finite(w.End) || w.Start < 0 || w.End <= w.Start {
			return &ValidationError{
				Field: fmt.Sprintf("timestamps[%d]", i),
				Err:   fmt.Errorf("%w: start=%v end=%v", ErrInvalidWindow, w.Start, w.End),
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
