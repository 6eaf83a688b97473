package clip

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/clipper-api/internal/media"
	"github.com/maauso/clipper-api/internal/storage"
)

// durationTolerance absorbs container and AAC frame padding.
const durationTolerance = 0.15

// skipIfNoFFmpeg skips the test if ffmpeg or ffprobe is not available.
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH, skipping test", bin)
		}
	}
}

func generate(t *testing.T, args ...string) {
	t.Helper()
	cmd := exec.Command("ffmpeg", append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\noutput: %s", err, output)
	}
}

func createSource(t *testing.T, dir string, duration float64, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("source_%gs.mp4", duration))
	generate(t,
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc=size=%dx%d:rate=24:duration=%g", width, height, duration),
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=440:sample_rate=44100:duration=%g", duration),
		"-c:v", "libx264", "-preset", "ultrafast", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-shortest", path,
	)
	return path
}

func createMusic(t *testing.T, dir string, duration float64) string {
	t.Helper()
	path := filepath.Join(dir, "music.m4a")
	generate(t,
		"-f", "lavfi", "-i", fmt.Sprintf("sine=frequency=220:sample_rate=44100:duration=%g", duration),
		"-c:a", "aac", path,
	)
	return path
}

func newFFmpegPipeline(t *testing.T) (*Pipeline, *media.FFmpegProcessor) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ffmpeg := media.NewFFmpegProcessor("")
	return NewPipeline(ffmpeg, ffmpeg, store, storage.NewRemover(store, logger), logger), ffmpeg
}

func TestPipelineFFmpeg_ShortsScenario(t *testing.T) {
	skipIfNoFFmpeg(t)

	p, ffmpeg := newFFmpegPipeline(t)
	src := createSource(t, t.TempDir(), 20, 640, 360)

	req := baseRequest(Window{Start: 0, End: 5}, Window{Start: 10, End: 15})
	req.Format = media.FormatSpec{Format: media.FormatShorts}

	ctx := context.Background()
	req.SourcePath = src
	results, err := p.Process(ctx, req)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		info, err := ffmpeg.Probe(ctx, r.VideoPath)
		require.NoError(t, err)

		assert.LessOrEqual(t, info.Duration, 5.0+durationTolerance)
		assert.GreaterOrEqual(t, info.Height, 1920)
		assert.InDelta(t, 9.0/16.0, float64(info.Width)/float64(info.Height), 1.0/float64(info.Height)+1.0/float64(info.Width))
	}
}

func TestPipelineFFmpeg_ClampedWindow(t *testing.T) {
	skipIfNoFFmpeg(t)

	p, ffmpeg := newFFmpegPipeline(t)
	ctx := context.Background()

	req := baseRequest(Window{Start: 0, End: 10}, Window{Start: 7, End: 9})
	req.SourcePath = createSource(t, t.TempDir(), 5, 320, 240)

	results, err := p.Process(ctx, req)
	require.NoError(t, err)
	require.Len(t, results, 1)

	info, err := ffmpeg.Probe(ctx, results[0].VideoPath)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, info.Duration, durationTolerance)
	assert.Equal(t, 320, info.Width)
}

func TestPipelineFFmpeg_LoopedMusicCoversClip(t *testing.T) {
	skipIfNoFFmpeg(t)

	p, ffmpeg := newFFmpegPipeline(t)
	ctx := context.Background()
	dir := t.TempDir()

	req := baseRequest(Window{Start: 0, End: 6})
	req.SourcePath = createSource(t, dir, 8, 320, 240)
	req.BackgroundPath = createMusic(t, dir, 2)
	req.Audio.ExportAudio = true

	results, err := p.Process(ctx, req)
	require.NoError(t, err)
	require.Len(t, results, 1)

	clip, err := ffmpeg.Probe(ctx, results[0].VideoPath)
	require.NoError(t, err)
	assert.True(t, clip.HasAudio)
	assert.InDelta(t, 6.0, clip.Duration, durationTolerance)

	exported, err := ffmpeg.Probe(ctx, results[0].AudioPath)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, exported.Duration, durationTolerance)
}

// decodePCM decodes the first audio stream of path to mono 44.1 kHz float samples.
func decodePCM(t *testing.T, path string) []float64 {
	t.Helper()
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-i", path, "-map", "0:a:0", "-ac", "1", "-ar", "44100", "-f", "f32le", "-")
	raw, err := cmd.Output()
	require.NoError(t, err, "decode %s", path)

	samples := make([]float64, len(raw)/4)
	for i := range samples {
		samples[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
	}
	return samples
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestPipelineFFmpeg_MutedMusicMatchesScaledOriginal(t *testing.T) {
	skipIfNoFFmpeg(t)

	p, _ := newFFmpegPipeline(t)
	ctx := context.Background()
	dir := t.TempDir()

	const videoVolume = 0.5
	src := createSource(t, dir, 6, 320, 240)

	req := baseRequest(Window{Start: 1, End: 5})
	req.SourcePath = src
	req.BackgroundPath = createMusic(t, dir, 2)
	req.Audio.VideoVolume = videoVolume
	req.Audio.MusicVolume = 0

	results, err := p.Process(ctx, req)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// The same window of the source with only the video volume applied,
	// encoded with the clip encoder's audio settings.
	reference := filepath.Join(dir, "reference.m4a")
	generate(t,
		"-ss", "1.000", "-t", "4.000", "-i", src,
		"-map", "0:a:0", "-af", "volume="+strconv.FormatFloat(videoVolume, 'f', -1, 64),
		"-c:a", media.AudioCodec, "-b:a", media.AudioBitrate,
		"-t", "4.000", reference,
	)

	mixed := decodePCM(t, results[0].VideoPath)
	want := decodePCM(t, reference)
	require.NotEmpty(t, want)

	n := min(len(mixed), len(want))
	assert.InDelta(t, len(want), len(mixed), 0.05*float64(len(want)))

	diff := make([]float64, n)
	for i := range n {
		diff[i] = mixed[i] - want[i]
	}

	// Lossy AAC on both sides leaves a small residual. Music leaking in at
	// the default 0.2 volume would come to about 40% of the signal.
	assert.Less(t, rms(diff), 0.1*rms(want[:n]))

	// The source sine is unscaled, so the clip carries half its level.
	original := decodePCM(t, src)
	assert.InDelta(t, videoVolume, rms(mixed[:n])/rms(original), 0.05)
}
