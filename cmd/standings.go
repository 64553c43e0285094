package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

func newStandingsCmd() *cobra.Command {
	var season int
	cmd := &cobra.Command{
		Use:   "standings",
		Short: "Recomputes the season's standings from stored finished games",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out, err := appInstance.Operations().RecalculateStandings(cmd.Context(), season)
			if err != nil {
				return fmt.Errorf("recalculate standings: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&season, "season", time.Now().In(crawler.Location).Year(), "season year")
	return cmd
}
