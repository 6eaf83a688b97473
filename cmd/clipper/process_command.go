package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/maauso/clipper-api/internal/archive"
	"github.com/maauso/clipper-api/internal/audio"
	"github.com/maauso/clipper-api/internal/clip"
	"github.com/maauso/clipper-api/internal/media"
	"github.com/maauso/clipper-api/internal/storage"
	"github.com/maauso/clipper-api/internal/task/id"
)

var errWindowSyntax = errors.New("window must look like START-END in seconds, e.g. 12.5-20")

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		windows      []string
		format       string
		customWidth  int
		customHeight int
		music        string
		opts         = audio.DefaultOptions()
		noLoop       bool
		zip          bool
	)

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Cut clips from a local video",
		Long: `Cut one clip per --window from a local video.

Each clip is reframed to --format and mixed with the optional --music track.
Outputs are written to the work directory and their paths printed.

Example:
  clipper process talk.mp4 --window 0-15 --window 60-75 --format shorts
  clipper process talk.mp4 --window 10-20 --music bed.mp3 --music-volume 0.3 --zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseWindows(windows)
			if err != nil {
				return err
			}
			f, err := media.ParseFormat(format)
			if err != nil {
				return err
			}
			opts.LoopMusic = !noLoop

			cfg := ctx.cfg
			store, err := storage.NewLocalStorage(cfg.TempDir)
			if err != nil {
				return err
			}
			remover := storage.NewRemover(store, ctx.logger,
				storage.WithMaxAttempts(cfg.RemoveMaxAttempts),
				storage.WithBackoff(cfg.RemoveBackoff()),
			)
			processor := ctx.processor()
			pipeline := clip.NewPipeline(processor, processor, store, remover, ctx.logger)

			results, err := pipeline.Process(cmd.Context(), clip.Request{
				SourcePath:     args[0],
				Windows:        parsed,
				Format:         media.FormatSpec{Format: f, Width: customWidth, Height: customHeight},
				Audio:          opts,
				BackgroundPath: music,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No clips produced: every window starts after the end of the video.")
				return nil
			}

			if zip {
				files := store.ListExisting(append(clip.VideoPaths(results), clip.AudioPaths(results)...))
				zipPath, err := archive.Build(files, "clips_"+id.Generate()+".zip")
				if err != nil {
					return err
				}
				remover.RemoveAll(cmd.Context(), files...)
				fmt.Fprintf(out, "Archive: %s (%s)\n", zipPath, fileSize(zipPath))
				return nil
			}

			for _, res := range results {
				fmt.Fprintf(out, "#%d %.3f-%.3f  %s (%s)\n",
					res.WindowIndex, res.Window.Start, res.Window.End, res.VideoPath, fileSize(res.VideoPath))
				if res.AudioPath != "" {
					fmt.Fprintf(out, "   audio  %s\n", res.AudioPath)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&windows, "window", "w", nil, "Clip window START-END in seconds (repeatable)")
	flags.StringVarP(&format, "format", "f", string(media.DefaultFormat), "Output format: shorts, video, square, cinema, film, original or custom")
	flags.IntVar(&customWidth, "width", 0, "Output width for --format custom")
	flags.IntVar(&customHeight, "height", 0, "Output height for --format custom")
	flags.StringVarP(&music, "music", "m", "", "Background music file")
	flags.Float64Var(&opts.VideoVolume, "video-volume", opts.VideoVolume, "Volume multiplier for the original audio")
	flags.Float64Var(&opts.MusicVolume, "music-volume", opts.MusicVolume, "Volume multiplier for the background music")
	flags.BoolVar(&noLoop, "no-loop", false, "Do not repeat music shorter than a clip")
	flags.BoolVar(&opts.ExportAudio, "export-audio", false, "Also write each clip's original audio to its own file")
	flags.BoolVar(&zip, "zip", false, "Bundle every output into one zip archive")
	_ = cmd.MarkFlagRequired("window")

	return cmd
}

// parseWindows turns "START-END" flag values into windows.
func parseWindows(values []string) ([]clip.Window, error) {
	windows := make([]clip.Window, 0, len(values))
	for _, v := range values {
		startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(v), "-")
		if !ok {
			return nil, fmt.Errorf("%w: %q", errWindowSyntax, v)
		}
		start, err := strconv.ParseFloat(strings.TrimSpace(startRaw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errWindowSyntax, v)
		}
		end, err := strconv.ParseFloat(strings.TrimSpace(endRaw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errWindowSyntax, v)
		}
		windows = append(windows, clip.Window{Start: start, End: end})
	}
	return windows, clip.ValidateWindows(windows)
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "unknown size"
	}
	return humanize.Bytes(uint64(fi.Size()))
}
