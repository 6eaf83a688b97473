package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

// createTestVideo creates a test pattern video, optionally with a sine tone.
func createTestVideo(t *testing.T, path string, duration float64, width, height int, withAudio bool) {
	t.Helper()

	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc=size=%dx%d:rate=24:duration=%.1f", width, height, duration),
	}
	if withAudio {
		args = append(args,
			"-f", "lavfi",
			"-i", fmt.Sprintf("sine=frequency=440:sample_rate=44100:duration=%.1f", duration),
			"-c:a", "aac",
		)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "ultrafast",
		"-pix_fmt", "yuv420p",
		"-shortest",
		path,
	)

	cmd := exec.Command("ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to create test video: %v\noutput: %s", err, output)
	}
}

func TestNewFFmpegProcessor(t *testing.T) {
	t.Run("default paths", func(t *testing.T) {
		p := NewFFmpegProcessor("")
		assert.Equal(t, "ffmpeg", p.ffmpegPath)
		assert.Equal(t, "ffprobe", p.ffprobePath)
	})

	t.Run("custom paths", func(t *testing.T) {
		p := NewFFmpegProcessor("/usr/local/bin/ffmpeg", WithFFprobePath("/usr/local/bin/ffprobe"))
		assert.Equal(t, "/usr/local/bin/ffmpeg", p.ffmpegPath)
		assert.Equal(t, "/usr/local/bin/ffprobe", p.ffprobePath)
	})
}

func TestBuildClipArgs(t *testing.T) {
	t.Run("original format keeps source audio", func(t *testing.T) {
		args, err := buildClipArgs(ClipSpec{
			Source:          "in.mp4",
			Start:           10,
			Duration:        5,
			KeepSourceAudio: true,
			Output:          "out.mp4",
		})
		require.NoError(t, err)

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-ss 10.000 -t 5.000 -i in.mp4")
		assert.NotContains(t, joined, "-filter_complex")
		assert.Contains(t, joined, "-map 0:v:0 -map 0:a:0?")
		assert.Contains(t, joined, "-c:v libx264 -preset ultrafast")
		assert.Contains(t, joined, "-r 24")
		assert.Contains(t, joined, "-c:a aac")
		assert.Equal(t, "out.mp4", args[len(args)-1])
	})

	t.Run("geometry and mixed audio share one graph", func(t *testing.T) {
		args, err := buildClipArgs(ClipSpec{
			Source:          "in.mp4",
			Duration:        5,
			Geometry:        Geometry{Crop: Rect{W: 608, H: 1080, X: 656}, ScaleW: 1080, ScaleH: 1920},
			BackgroundPath:  "bg.mp3",
			BackgroundLoops: 2,
			AudioFilter:     "[1:a]atrim=duration=5,volume=0.2[aout]",
			Output:          "out.mp4",
		})
		require.NoError(t, err)

		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-stream_loop 2 -i bg.mp3")
		assert.Contains(t, joined,
			"-filter_complex [0:v:0]crop=608:1080:656:0,scale=1080:1920,setsar=1[vout];[1:a]atrim=duration=5,volume=0.2[aout]")
		assert.Contains(t, joined, "-map [vout] -map [aout]")
	})

	t.Run("no loops omits stream_loop", func(t *testing.T) {
		args, err := buildClipArgs(ClipSpec{
			Source:         "in.mp4",
			Duration:       5,
			BackgroundPath: "bg.mp3",
			AudioFilter:    "[1:a]anull[aout]",
			Output:         "out.mp4",
		})
		require.NoError(t, err)
		assert.NotContains(t, args, "-stream_loop")
	})

	t.Run("silent clip disables audio", func(t *testing.T) {
		args, err := buildClipArgs(ClipSpec{Source: "in.mp4", Duration: 5, Output: "out.mp4"})
		require.NoError(t, err)
		assert.Contains(t, args, "-an")
		assert.NotContains(t, args, "-c:a")
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := buildClipArgs(ClipSpec{Source: "in.mp4", Duration: 0, Output: "out.mp4"})
		assert.ErrorIs(t, err, ErrInvalidDuration)

		_, err = buildClipArgs(ClipSpec{Source: "in.mp4", Duration: 1})
		assert.ErrorIs(t, err, ErrMissingOutput)
	})
}

func TestFFmpegError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &FFmpegError{Args: []string{"-i", "x"}, Stderr: "No such file", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "No such file")
}

func TestFFmpegProcessor_EncodeClip(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "source.mp4")
	createTestVideo(t, src, 4, 320, 240, true)

	p := NewFFmpegProcessor("")
	ctx := context.Background()

	info, err := p.Probe(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
	assert.True(t, info.HasAudio)
	assert.InDelta(t, 4.0, info.Duration, 0.2)

	geometry, err := GeometryFor(FormatSpec{Format: FormatShorts}, info.Width, info.Height)
	require.NoError(t, err)

	out := filepath.Join(dir, "clip.mp4")
	err = p.EncodeClip(ctx, ClipSpec{
		Source:          src,
		Start:           1,
		Duration:        2,
		Geometry:        geometry,
		KeepSourceAudio: true,
		Output:          out,
	})
	require.NoError(t, err)

	clip, err := p.Probe(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, 1080, clip.Width)
	assert.Equal(t, 1920, clip.Height)
	assert.True(t, clip.HasAudio)
	assert.InDelta(t, 2.0, clip.Duration, 0.15)
}

func TestFFmpegProcessor_ExportAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "source.mp4")
	createTestVideo(t, src, 3, 64, 64, true)

	p := NewFFmpegProcessor("")
	ctx := context.Background()

	dst := filepath.Join(dir, "audio.m4a")
	require.NoError(t, p.ExportAudio(ctx, src, dst, 0.5, 2))

	info, err := p.Probe(ctx, dst)
	require.NoError(t, err)
	assert.True(t, info.HasAudio)
	assert.Zero(t, info.Width)
	assert.InDelta(t, 2.0, info.Duration, 0.15)
}

func TestFFmpegProcessor_ProbeMissingFile(t *testing.T) {
	skipIfNoFFmpeg(t)

	p := NewFFmpegProcessor("")
	_, err := p.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ErrFFprobeExecution)

	_, err = os.Stat("missing.mp4")
	assert.True(t, os.IsNotExist(err))
}
