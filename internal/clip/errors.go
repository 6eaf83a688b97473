package clip

import (
	"errors"
	"fmt"
)

// Static errors for request validation.
var (
	// ErrNoWindows is returned when a request carries no timestamps.
	ErrNoWindows = errors.New("at least one timestamp is required")
	// ErrInvalidWindow is returned for a negative, empty or reversed window.
	ErrInvalidWindow = errors.New("timestamp end must be greater than start and start must be >= 0")
)

// ValidationError reports a malformed request detected before any media
// is touched. It is never retried.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ProcessingError reports the window whose extraction or encode failed.
// The whole pipeline call is aborted when it occurs.
type ProcessingError struct {
	Index int
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing clip %d: %v", e.Index, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PublicMessage describes err for API callers and webhook receivers.
// Encoder command lines, stderr and file paths stay in the logs.
func PublicMessage(err error) string {
	var (
		ve *ValidationError
		pe *ProcessingError
	)
	switch {
	case err == nil:
		return "unknown error"
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &pe):
		return fmt.Sprintf("processing clip %d failed", pe.Index)
	default:
		return "internal error"
	}
}
