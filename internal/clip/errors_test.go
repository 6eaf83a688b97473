package clip

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maauso/clipper-api/internal/media"
)

func TestPublicMessage(t *testing.T) {
	encoderFailure := &media.FFmpegError{
		Args:   []string{"-i", "/var/tmp/clipper/upload_1f2e.mp4", "/var/tmp/clipper/clip_9a8b.mp4"},
		Stderr: "/var/tmp/clipper/upload_1f2e.mp4: Invalid data found when processing input",
		Err:    errors.New("exit status 1"),
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "unknown error"},
		{"validation", &ValidationError{Field: "timestamps", Err: ErrNoWindows}, "invalid timestamps: at least one timestamp is required"},
		{"encoder failure", &ProcessingError{Index: 2, Err: fmt.Errorf("encode: %w", encoderFailure)}, "processing clip 2 failed"},
		{"wrapped processing error", fmt.Errorf("task: %w", &ProcessingError{Index: 0, Err: encoderFailure}), "processing clip 0 failed"},
		{"anything else", errors.New("open /var/tmp/clipper/clip_9a8b.mp4: permission denied"), "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PublicMessage(tt.err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "/var/tmp")
		})
	}
}
