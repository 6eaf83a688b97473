package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show duration, frame size and audio presence of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fi, err := os.Stat(path)
			if err != nil {
				return err
			}

			info, err := ctx.processor().Probe(cmd.Context(), path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File:     %s (%s)\n", path, humanize.Bytes(uint64(fi.Size())))
			fmt.Fprintf(out, "Duration: %.3fs\n", info.Duration)
			if info.Width > 0 {
				fmt.Fprintf(out, "Frame:    %dx%d\n", info.Width, info.Height)
			} else {
				fmt.Fprintln(out, "Frame:    none (audio only)")
			}
			fmt.Fprintf(out, "Audio:    %t\n", info.HasAudio)
			return nil
		},
	}
}
