// Package cmd defines and implements the CLI commands for the kbo-crawler executable.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/service"
)

// newCrawlCmd groups the one-shot crawl commands. Each prints its result as JSON.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl and exits",
	}
	cmd.AddCommand(newCrawlScheduleCmd())
	cmd.AddCommand(newCrawlLineupsCmd())
	cmd.AddCommand(newBackfillLineupsCmd())
	cmd.AddCommand(newCrawlCommentsCmd())
	cmd.AddCommand(newCrawlRankingsCmd())
	return cmd
}

func newCrawlScheduleCmd() *cobra.Command {
	now := time.Now().In(crawler.Location)
	var year, month int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Crawls one month of the calendar and reconciles it into the game store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			results, err := appInstance.Operations().CrawlSchedule(cmd.Context(), year, month)
			if err != nil {
				return fmt.Errorf("crawl schedule: %w", err)
			}
			appInstance.Logger().Info("schedule crawl finished", zap.Int("games", len(results)))
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "season year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month, 1-12")
	return cmd
}

func newCrawlLineupsCmd() *cobra.Command {
	var gameKey string
	cmd := &cobra.Command{
		Use:   "lineups",
		Short: "Crawls a stored game's box score and replaces its lineups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ops := appInstance.Operations()
			if err := ops.CrawlAndPersistLineups(cmd.Context(), gameKey); err != nil {
				return fmt.Errorf("crawl lineups: %w", err)
			}
			lineups, err := ops.Lineups(cmd.Context(), gameKey)
			if err != nil {
				// an empty crawl on a game with nothing stored
				appInstance.Logger().Info("no lineups stored", zap.String("game_key", gameKey), zap.Error(err))
				return printJSON(cmd.OutOrStdout(), []crawler.Lineup{})
			}
			return printJSON(cmd.OutOrStdout(), lineups)
		},
	}
	cmd.Flags().StringVar(&gameKey, "game-key", "", "game key, e.g. 20250701LTOB0")
	_ = cmd.MarkFlagRequired("game-key")
	return cmd
}

func newBackfillLineupsCmd() *cobra.Command {
	now := time.Now().In(crawler.Location)
	var year, month int
	cmd := &cobra.Command{
		Use:   "backfill-lineups",
		Short: "Crawls lineups for every finished game stored for a month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			results, err := appInstance.Operations().BackfillLineups(cmd.Context(), year, month)
			if err != nil {
				return fmt.Errorf("backfill lineups: %w", err)
			}
			if results == nil {
				results = []service.LineupBackfillResult{}
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntVar(&year, "year", now.Year(), "season year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month, 1-12")
	return cmd
}

func newCrawlCommentsCmd() *cobra.Command {
	var gameKey string
	cmd := &cobra.Command{
		Use:   "comments",
		Short: "Prints a game's public comments",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			comments, err := appInstance.Operations().CrawlComments(cmd.Context(), gameKey)
			if err != nil {
				return fmt.Errorf("crawl comments: %w", err)
			}
			if comments == nil {
				comments = []crawler.RawCommentRecord{}
			}
			return printJSON(cmd.OutOrStdout(), comments)
		},
	}
	cmd.Flags().StringVar(&gameKey, "game-key", "", "game key, e.g. 20250701LTOB0")
	_ = cmd.MarkFlagRequired("game-key")
	return cmd
}

func newCrawlRankingsCmd() *cobra.Command {
	var season int
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Crawls the league table and overwrites the season's rankings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out, err := appInstance.Operations().CrawlAndUpdateRankings(cmd.Context(), season)
			if err != nil {
				return fmt.Errorf("crawl rankings: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&season, "season", time.Now().In(crawler.Location).Year(), "season year")
	return cmd
}
