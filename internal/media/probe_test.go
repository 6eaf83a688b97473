package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	t.Run("video with audio", func(t *testing.T) {
		out := []byte(`{
			"streams": [
				{"codec_type": "video", "width": 1920, "height": 1080},
				{"codec_type": "audio"}
			],
			"format": {"duration": "20.040000"}
		}`)

		info, err := parseProbeOutput(out)
		require.NoError(t, err)
		assert.InDelta(t, 20.04, info.Duration, 1e-9)
		assert.Equal(t, 1920, info.Width)
		assert.Equal(t, 1080, info.Height)
		assert.True(t, info.HasAudio)
	})

	t.Run("silent video", func(t *testing.T) {
		out := []byte(`{"streams": [{"codec_type": "video", "width": 64, "height": 48}], "format": {"duration": "5"}}`)

		info, err := parseProbeOutput(out)
		require.NoError(t, err)
		assert.False(t, info.HasAudio)
	})

	t.Run("duration falls back to stream", func(t *testing.T) {
		out := []byte(`{"streams": [{"codec_type": "audio", "duration": "3.5"}], "format": {}}`)

		info, err := parseProbeOutput(out)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, info.Duration, 1e-9)
		assert.Zero(t, info.Width)
	})

	t.Run("missing duration", func(t *testing.T) {
		_, err := parseProbeOutput([]byte(`{"streams": [], "format": {"duration": "N/A"}}`))
		assert.ErrorIs(t, err, ErrInvalidDuration)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := parseProbeOutput([]byte("not json"))
		assert.Error(t, err)
	})
}
