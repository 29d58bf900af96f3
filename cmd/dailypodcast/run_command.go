package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"DailyPodcast/internal/usecase"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		dateFlag  string
		forceFlag bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce the podcast for one date and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.application(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			day, err := resolveDate(dateFlag, a.Today())
			if err != nil {
				return err
			}

			outcome, err := a.Run(cmd.Context(), day, forceFlag)
			if err != nil {
				if outcome.Stage != "" {
					return fmt.Errorf("run %s failed at stage %q: %w", day.Format(usecase.DateLayout), outcome.Stage, err)
				}
				return fmt.Errorf("run %s: %w", day.Format(usecase.DateLayout), err)
			}

			out := cmd.OutOrStdout()
			switch outcome.Status {
			case usecase.StatusAlreadyRunning:
				fmt.Fprintf(out, "%s is already running (owner %s, expires %s)\n",
					day.Format(usecase.DateLayout), outcome.Lock.Owner, outcome.Lock.ExpiresAt.Format(time.RFC3339))
			case usecase.StatusSkipped:
				fmt.Fprintf(out, "%s already published: %s\n", outcome.Artifact.Date, outcome.Artifact.Title)
			default:
				fmt.Fprintf(out, "published %s\n%s\n", outcome.Artifact.Title, outcome.Artifact.AudioRef.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Date to produce (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Regenerate even if the date is already published")
	return cmd
}

func resolveDate(value string, today time.Time) (time.Time, error) {
	if value == "" {
		return today, nil
	}
	return usecase.ParseDate(value)
}
