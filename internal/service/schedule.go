package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// CrawlSchedule crawls one month, reconciles it against the persisted games of that
// month and saves every inserted or updated game. Unchanged games are reported but not
// written. A failed save is logged and the rest of the batch continues.
func (s *Service) CrawlSchedule(ctx context.Context, year, month int) (results []crawler.GameUpdateResult, err error) {
	op := s.begin("schedule", zap.Int("year", year), zap.Int("month", month))
	defer func() { op.finish(err) }()

	start, err := monthStart(year, month)
	if err != nil {
		return nil, err
	}

	raw, err := s.ScheduleCrawler.Crawl(ctx, year, month)
	if err != nil {
		return nil, err
	}

	persisted, err := s.Games.FindByDateRange(ctx, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("load persisted games: %w", err)
	}

	changes, err := s.Engine.ReconcileSchedule(ctx, raw, persisted)
	if err != nil {
		return nil, err
	}

	results = make([]crawler.GameUpdateResult, 0, len(changes))
	for _, c := range changes {
		game := c.Game
		if c.Action != crawler.ActionUnchanged {
			saved, err := s.Games.Save(ctx, game)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return results, ctxErr
				}
				op.logger.Warn("game save failed", zap.String("game_key", game.GameKey), zap.Error(err))
				continue
			}
			game = saved
		}
		res := gameResult(op.runID, game, c.Action)
		results = append(results, res)
		if c.Action != crawler.ActionUnchanged {
			s.publish(ctx, op, res)
		}
	}
	op.logger.Info("schedule reconciled", zap.Int("crawled", len(raw)), zap.Int("results", len(results)))
	return results, nil
}

// monthStart validates year and month and returns midnight of the 1st in Korea.
func monthStart(year, month int) (time.Time, error) {
	if month < 1 || month > 12 {
		return time.Time{}, invalid("month %d out of range", month)
	}
	if err := validSeason(year); err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, crawler.Location), nil
}

func gameResult(runID string, g crawler.Game, action crawler.UpdateAction) crawler.GameUpdateResult {
	return crawler.GameUpdateResult{
		RunID:        runID,
		GameID:       g.ID,
		GameKey:      g.GameKey,
		Action:       action,
		GameDateTime: g.GameDateTime,
		HomeTeam:     g.HomeTeam.Name,
		HomeTeamCode: g.HomeTeam.Code,
		AwayTeam:     g.AwayTeam.Name,
		AwayTeamCode: g.AwayTeam.Code,
		Stadium:      g.Stadium,
		HomeScore:    g.HomeScore,
		AwayScore:    g.AwayScore,
		Status:       g.Status,
	}
}

func (s *Service) publish(ctx context.Context, op *operation, res crawler.GameUpdateResult) {
	if s.Publisher == nil || s.Topic == "" {
		return
	}
	id, err := s.Publisher.Publish(ctx, s.Topic, res)
	if err != nil {
		op.logger.Warn("game update publish failed", zap.String("game_key", res.GameKey), zap.Error(err))
		return
	}
	op.logger.Debug("game update published", zap.String("game_key", res.GameKey), zap.String("message_id", id))
}
