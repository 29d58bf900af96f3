package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"DailyPodcast/internal/app"
	"DailyPodcast/internal/config"
	"DailyPodcast/internal/logging"
)

type commandContext struct {
	configFlag *string
	cfg        *config.Config
	logger     *slog.Logger
}

func (c *commandContext) config() config.Config {
	if c.cfg == nil {
		path := *c.configFlag
		if path == "" {
			path = os.Getenv("DAILY_PODCAST_CONFIG")
		}
		cfg := config.LoadPath(path)
		c.cfg = &cfg
	}
	return *c.cfg
}

func (c *commandContext) log() *slog.Logger {
	if c.logger == nil {
		cfg := c.config()
		c.logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	return c.logger
}

func (c *commandContext) application(ctx context.Context) (*app.Application, error) {
	a, err := app.New(ctx, c.config(), c.log())
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}
	return a, nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "dailypodcast",
		Short:         "Daily tech podcast pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))

	return rootCmd
}
