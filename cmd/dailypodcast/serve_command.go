package main

import (
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the cron schedule and the HTTP trigger endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.application(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := ctx.config()
			ctx.log().Info("serving",
				"addr", cfg.HTTP.Addr,
				"cron", cfg.Scheduler.CronExpression,
				"timezone", cfg.Scheduler.Location().String(),
				"scheduler_enabled", cfg.Scheduler.Enabled,
			)
			return a.Serve(cmd.Context())
		},
	}
}
