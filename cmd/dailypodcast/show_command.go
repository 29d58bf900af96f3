package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"DailyPodcast/internal/domain"
	"DailyPodcast/internal/usecase"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var dateFlag string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the stored artifact of a date",
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
			artifact, ok, err := a.Artifact(cmd.Context(), day)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no artifact for %s", day.Format(usecase.DateLayout))
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderArtifact(artifact))
			return nil
		},
	}

	cmd.Flags().StringVar(&dateFlag, "date", "", "Date to show (YYYY-MM-DD, default today)")
	return cmd
}

func renderArtifact(artifact domain.Artifact) string {
	summary := renderTable(
		[]string{"Field", "Value"},
		[][]string{
			{"Title", artifact.Title},
			{"Date", artifact.Date},
			{"Audio", artifact.AudioRef.URL},
			{"Audio key", artifact.Audio},
			{"Audio size", strconv.FormatInt(artifact.AudioRef.Bytes, 10)},
			{"Dialogue lines", strconv.Itoa(len(artifact.PodcastScript.Dialogue))},
			{"Updated", time.UnixMilli(artifact.UpdatedAt).UTC().Format(time.RFC3339)},
			{"Intro", strings.TrimSpace(artifact.IntroContent)},
		},
		nil,
	)

	rows := make([][]string, 0, len(artifact.Stories))
	for i, story := range artifact.Stories {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(story.Source), story.Title, story.Link()})
	}
	stories := renderTable([]string{"#", "Source", "Title", "URL"}, rows, []columnAlignment{alignRight})

	return summary + "\n" + stories
}
