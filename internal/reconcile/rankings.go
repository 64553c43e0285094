package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

// RankingChange is a ranking the caller should save.
type RankingChange struct {
	Ranking crawler.Ranking
	Action  crawler.UpdateAction
}

// ReconcileRankings matches raw rows to existing rankings on (team, season) and
// overwrites every numeric field with the crawled value. Rows whose team does not
// resolve are skipped. Every returned change is meant to be saved, including
// unchanged ones: a crawl is a full replace of the season's snapshot.
func (e *Engine) ReconcileRankings(ctx context.Context, season int, raw []crawler.RawRankingRecord, existing []crawler.Ranking) ([]RankingChange, error) {
	all, err := e.teams.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load teams: %w", err)
	}
	byName := make(map[string]crawler.Team, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}
	current := make(map[string]crawler.Ranking, len(existing))
	for _, r := range existing {
		current[r.Team.Name] = r
	}
	now := e.clock.Now()

	changes := make([]RankingChange, 0, len(raw))
	done := make(map[string]bool, len(raw))
	for _, rec := range raw {
		logger := e.logger.With(zap.String("team", rec.TeamShortName), zap.Int("season", season))
		full := e.names.FullName(rec.TeamShortName)
		if e.names.IsUnknown(full) {
			e.skip(logger, "ranking", crawler.SkipIdentity, "short name is not mapped")
			continue
		}
		team, ok := byName[full]
		if !ok {
			e.skip(logger, "ranking", crawler.SkipIdentity, fmt.Sprintf("team %q is not persisted", full))
			continue
		}
		if done[full] {
			e.skip(logger, "ranking", crawler.SkipStructural, "team listed twice in standings")
			continue
		}
		done[full] = true
		if team.Code == "" {
			team.Code = e.names.Code(rec.TeamShortName)
		}

		prev, found := current[full]
		next := prev
		next.Team = team
		next.SeasonYear = season
		overwrite(&next, rec)
		next.UpdatedAt = now

		action := crawler.ActionInserted
		if found {
			action = crawler.ActionUpdated
			if sameStanding(prev, next) {
				action = crawler.ActionUnchanged
			}
		}
		metrics.ObserveReconcile("ranking", string(action))
		changes = append(changes, RankingChange{Ranking: next, Action: action})
	}
	return changes, nil
}

func overwrite(r *crawler.Ranking, rec crawler.RawRankingRecord) {
	r.Rank = rec.Rank
	r.GamesPlayed = rec.GamesPlayed
	r.Wins = rec.Wins
	r.Losses = rec.Losses
	r.Draws = rec.Draws
	r.WinRate = rec.WinRate
	r.GamesBehind = rec.GamesBehind
}

func sameStanding(a, b crawler.Ranking) bool {
	return a.Rank == b.Rank &&
		a.GamesPlayed == b.GamesPlayed &&
		a.Wins == b.Wins &&
		a.Losses == b.Losses &&
		a.Draws == b.Draws &&
		a.WinRate == b.WinRate &&
		a.GamesBehind == b.GamesBehind
}
