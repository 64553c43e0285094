package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/reconcile"
)

// CrawlAndUpdateRankings crawls the league table and overwrites the season's rankings.
func (s *Service) CrawlAndUpdateRankings(ctx context.Context, season int) (out []crawler.RankingDTO, err error) {
	op := s.begin("rankings", zap.Int("season", season))
	defer func() { op.finish(err) }()

	if err := validSeason(season); err != nil {
		return nil, err
	}
	raw, err := s.RankingCrawler.Crawl(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := s.RankingStore.FindBySeasonOrderedByRank(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("load rankings: %w", err)
	}
	changes, err := s.Engine.ReconcileRankings(ctx, season, raw, existing)
	if err != nil {
		return nil, err
	}
	next := make([]crawler.Ranking, len(changes))
	for i, c := range changes {
		next[i] = c.Ranking
	}
	out, err = s.saveRankings(ctx, op, next)
	if err != nil {
		return nil, err
	}
	s.cacheRankings(ctx, op, season, out)
	return out, nil
}

// RecalculateStandings rebuilds the season table from persisted FINISHED games.
func (s *Service) RecalculateStandings(ctx context.Context, season int) (out []crawler.RankingDTO, err error) {
	op := s.begin("standings", zap.Int("season", season))
	defer func() { op.finish(err) }()

	if err := validSeason(season); err != nil {
		return nil, err
	}
	teams, err := s.Teams.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	start := time.Date(season, time.January, 1, 0, 0, 0, 0, crawler.Location)
	games, err := s.Games.FindByDateRange(ctx, start, start.AddDate(1, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("load season games: %w", err)
	}
	existing, err := s.RankingStore.FindBySeasonOrderedByRank(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("load rankings: %w", err)
	}
	table, err := reconcile.ComputeStandings(season, teams, games, existing, s.Clock.Now())
	if err != nil {
		return nil, err
	}
	out, err = s.saveRankings(ctx, op, table)
	if err != nil {
		return nil, err
	}
	s.cacheRankings(ctx, op, season, out)
	return out, nil
}

// Rankings reads the season table through the cache. Cache failures fall back to the store.
func (s *Service) Rankings(ctx context.Context, season int) ([]crawler.RankingDTO, error) {
	if err := validSeason(season); err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.Int("season", season))
	if s.Cache != nil {
		cached, ok, err := s.Cache.GetRankings(ctx, season)
		switch {
		case err != nil:
			logger.Warn("ranking cache read failed", zap.Error(err))
		case ok:
			return cached, nil
		}
	}
	stored, err := s.RankingStore.FindBySeasonOrderedByRank(ctx, season)
	if err != nil {
		return nil, fmt.Errorf("load rankings: %w", err)
	}
	out := rankingDTOs(stored)
	if s.Cache != nil {
		if err := s.Cache.SetRankings(ctx, season, out); err != nil {
			logger.Warn("ranking cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// saveRankings writes each ranking; a failed row is logged and left out of the result.
func (s *Service) saveRankings(ctx context.Context, op *operation, rankings []crawler.Ranking) ([]crawler.RankingDTO, error) {
	saved := make([]crawler.Ranking, 0, len(rankings))
	for _, r := range rankings {
		got, err := s.RankingStore.Save(ctx, r)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			op.logger.Warn("ranking save failed", zap.String("team", r.Team.Name), zap.Error(err))
			continue
		}
		saved = append(saved, got)
	}
	return rankingDTOs(saved), nil
}

func (s *Service) cacheRankings(ctx context.Context, op *operation, season int, rankings []crawler.RankingDTO) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.SetRankings(ctx, season, rankings); err != nil {
		op.logger.Warn("ranking cache write failed", zap.Error(err))
	}
}

func rankingDTOs(rankings []crawler.Ranking) []crawler.RankingDTO {
	out := make([]crawler.RankingDTO, len(rankings))
	for i, r := range rankings {
		out[i] = crawler.NewRankingDTO(r)
	}
	slices.SortStableFunc(out, func(a, b crawler.RankingDTO) int {
		return cmp.Or(cmp.Compare(a.Rank, b.Rank), cmp.Compare(a.TeamName, b.TeamName))
	})
	return out
}
