package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// LineupBackfillResult reports one game of a lineup backfill. Error is empty on success.
type LineupBackfillResult struct {
	GameKey  string `json:"game_key"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

// BackfillLineups crawls and persists lineups for every FINISHED game stored for the
// month. Games are crawled concurrently; a failed game is reported in its result and
// does not fail the batch.
func (s *Service) BackfillLineups(ctx context.Context, year, month int) (out []LineupBackfillResult, err error) {
	op := s.begin("lineup_backfill", zap.Int("year", year), zap.Int("month", month))
	defer func() { op.finish(err) }()

	start, err := monthStart(year, month)
	if err != nil {
		return nil, err
	}
	games, err := s.Games.FindByDateRange(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("load persisted games: %w", err)
	}
	keys := make([]string, 0, len(games))
	for _, g := range games {
		if g.Status == crawler.StatusFinished {
			keys = append(keys, g.GameKey)
		}
	}

	results, err := s.Backfill.Run(ctx, keys, s.CrawlAndPersistLineups)
	if err != nil {
		return nil, err
	}
	out = make([]LineupBackfillResult, len(results))
	failed := 0
	for i, r := range results {
		out[i] = LineupBackfillResult{GameKey: r.GameKey, Attempts: r.Attempts}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
			failed++
		}
	}
	op.logger.Info("lineup backfill finished", zap.Int("games", len(keys)), zap.Int("failed", failed))
	return out, nil
}
