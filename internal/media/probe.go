package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrFFprobeExecution is returned when the ffprobe command fails.
var ErrFFprobeExecution = errors.New("ffprobe execution failed")

// Info is the subset of ffprobe metadata the clip pipeline relies on.
type Info struct {
	// Duration is the container duration in seconds.
	Duration float64
	// Width and Height are the first video stream's frame size (0 for audio-only files).
	Width  int
	Height int
	// HasAudio reports whether at least one audio stream exists.
	HasAudio bool
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

// Probe runs ffprobe against path and decodes its JSON report.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (Info, error) {
	if strings.TrimSpace(path) == "" {
		return Info{}, fmt.Errorf("%w: empty path", ErrFFprobeExecution)
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes())
}

// parseProbeOutput converts ffprobe JSON into Info.
func parseProbeOutput(output []byte) (Info, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := Info{Duration: parseSeconds(result.Format.Duration)}
	videoSeen := false
	for _, s := range result.Streams {
		switch strings.ToLower(s.CodecType) {
		case "video":
			if !videoSeen {
				info.Width, info.Height = s.Width, s.Height
				videoSeen = true
			}
		case "audio":
			info.HasAudio = true
		}
		// Some containers only report duration per stream.
		if info.Duration <= 0 {
			info.Duration = parseSeconds(s.Duration)
		}
	}

	if info.Duration <= 0 {
		return Info{}, fmt.Errorf("ffprobe parse: %w", ErrInvalidDuration)
	}
	return info, nil
}

func parseSeconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
