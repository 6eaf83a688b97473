package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/clipper-api/internal/config"
	"github.com/maauso/clipper-api/internal/media"
)

// commandContext lazily loads configuration shared by all subcommands.
type commandContext struct {
	workDir *string
	cfg     *config.Config
	logger  *slog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if *c.workDir != "" {
		cfg.TempDir = *c.workDir
	}
	c.cfg = cfg
	c.logger = cfg.NewLogger()
	return cfg, nil
}

func (c *commandContext) processor() *media.FFmpegProcessor {
	return media.NewFFmpegProcessor(c.cfg.FFmpegPath, media.WithFFprobePath(c.cfg.FFprobePath))
}

func newRootCommand() *cobra.Command {
	var workDir string
	ctx := &commandContext{workDir: &workDir}

	rootCmd := &cobra.Command{
		Use:           "clipper",
		Short:         "Cut, reframe and remix clips from a video",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "Directory for outputs (defaults to TEMP_DIR)")

	rootCmd.AddCommand(newProcessCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	return rootCmd
}
