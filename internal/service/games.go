package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
	"github.com/JakeFAU/kbo-game-crawler/internal/reconcile"
	"github.com/JakeFAU/kbo-game-crawler/internal/store"
)

// CrawlAndPersistLineups crawls the box score of a persisted game and replaces its
// lineups. A crawl that finds no players leaves the stored lineups untouched.
func (s *Service) CrawlAndPersistLineups(ctx context.Context, gameKey string) (err error) {
	op := s.begin("lineups", zap.String("game_key", gameKey))
	defer func() { op.finish(err) }()

	game, err := s.findGame(ctx, gameKey)
	if err != nil {
		return err
	}

	raw, err := s.LineupCrawler.Crawl(ctx, gameKey, game.HomeTeam.Name, game.AwayTeam.Name)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		op.logger.Info("no lineup rows found, keeping stored lineups")
		return nil
	}

	lineups := reconcile.BuildLineups(gameKey, raw)
	if err := s.LineupStore.ReplaceLineupsForGame(ctx, gameKey, lineups); err != nil {
		return fmt.Errorf("persist lineups: %w", err)
	}
	for range lineups {
		metrics.ObserveReconcile("lineup", "replaced")
	}
	op.logger.Info("lineups persisted", zap.Int("players", len(raw)), zap.Int("sides", len(lineups)))
	return nil
}

// Lineups returns the stored lineups of a game, home side first.
func (s *Service) Lineups(ctx context.Context, gameKey string) ([]crawler.Lineup, error) {
	if _, err := validGameKey(gameKey); err != nil {
		return nil, err
	}
	lineups, err := s.LineupStore.LineupsForGame(ctx, gameKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrLineupsNotFound, gameKey)
	case err != nil:
		return nil, fmt.Errorf("load lineups: %w", err)
	}
	return lineups, nil
}

// CrawlComments returns a game's public comments. They are not persisted.
func (s *Service) CrawlComments(ctx context.Context, gameKey string) (comments []crawler.RawCommentRecord, err error) {
	op := s.begin("comments", zap.String("game_key", gameKey))
	defer func() { op.finish(err) }()

	if _, err := validGameKey(gameKey); err != nil {
		return nil, err
	}
	comments, err = s.CommentCrawler.Crawl(ctx, gameKey)
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// findGame loads the game's kickoff day and picks the key out of it.
func (s *Service) findGame(ctx context.Context, gameKey string) (crawler.Game, error) {
	day, err := validGameKey(gameKey)
	if err != nil {
		return crawler.Game{}, err
	}
	games, err := s.Games.FindByDateRange(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return crawler.Game{}, fmt.Errorf("load games of %s: %w", day.Format("2006-01-02"), err)
	}
	for _, g := range games {
		if g.GameKey == gameKey {
			return g, nil
		}
	}
	return crawler.Game{}, fmt.Errorf("%w: %s", ErrGameNotFound, gameKey)
}
