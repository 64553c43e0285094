// Package reconcile folds freshly crawled records into persisted state.
//
// The engine never writes to a store itself. It returns the games, rankings and
// lineups the caller should persist, tagged with the action that produced them, so a
// store failure on one record never rolls back the others.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

// Engine reconciles crawled records against persisted ones.
type Engine struct {
	teams  crawler.TeamLookup
	names  crawler.TeamNames
	clock  crawler.Clock
	logger *zap.Logger
}

// New builds an Engine.
func New(teams crawler.TeamLookup, names crawler.TeamNames, clock crawler.Clock, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{teams: teams, names: names, clock: clock, logger: logger}
}

// GameChange is a game the caller should persist (unless Action is unchanged).
type GameChange struct {
	Game   crawler.Game
	Action crawler.UpdateAction
}

// ReconcileSchedule merges raw games into the persisted window. A raw key found in the
// window updates score, status and venue in place; an unseen key creates a game once
// both teams resolve. Records whose teams cannot be resolved are skipped. The only error
// returned is a canceled context.
func (e *Engine) ReconcileSchedule(ctx context.Context, raw []crawler.RawGameRecord, persisted []crawler.Game) ([]GameChange, error) {
	index := make(map[string]crawler.Game, len(persisted))
	for _, g := range persisted {
		index[g.GameKey] = g
	}
	resolver := newTeamResolver(e.teams, e.names)
	now := e.clock.Now()

	var (
		changes []GameChange
		// position of a key in changes, so a key repeated in one batch updates its first change
		seen = make(map[string]int)
	)
	for _, rec := range raw {
		if err := ctx.Err(); err != nil {
			return changes, fmt.Errorf("reconcile schedule: %w", err)
		}
		logger := e.logger.With(zap.String("game_key", rec.GameKey))
		if rec.GameKey == "" {
			e.skip(logger, "game", crawler.SkipStructural, "empty game key")
			continue
		}

		if pos, ok := seen[rec.GameKey]; ok {
			prev := changes[pos]
			updated, changed := applyGame(prev.Game, rec, now)
			if changed && prev.Action == crawler.ActionUnchanged {
				prev.Action = crawler.ActionUpdated
			}
			prev.Game = updated
			changes[pos] = prev
			continue
		}

		var change GameChange
		if existing, ok := index[rec.GameKey]; ok {
			updated, changed := applyGame(existing, rec, now)
			change = GameChange{Game: updated, Action: crawler.ActionUnchanged}
			if changed {
				change.Action = crawler.ActionUpdated
			}
		} else {
			game, reason, err := e.newGame(ctx, resolver, rec, now)
			if err != nil {
				return changes, err
			}
			if reason != "" {
				e.skip(logger, "game", crawler.SkipIdentity, reason)
				continue
			}
			change = GameChange{Game: game, Action: crawler.ActionInserted}
		}
		seen[rec.GameKey] = len(changes)
		changes = append(changes, change)
	}
	for _, c := range changes {
		metrics.ObserveReconcile("game", string(c.Action))
	}
	return changes, nil
}

func (e *Engine) newGame(ctx context.Context, resolver *teamResolver, rec crawler.RawGameRecord, now time.Time) (crawler.Game, string, error) {
	home, reason, err := resolver.resolve(ctx, rec.HomeTeamShortName)
	if err != nil || reason != "" {
		return crawler.Game{}, reason, err
	}
	away, reason, err := resolver.resolve(ctx, rec.AwayTeamShortName)
	if err != nil || reason != "" {
		return crawler.Game{}, reason, err
	}
	game := crawler.Game{
		GameKey:      rec.GameKey,
		GameDateTime: rec.GameDateTime,
		HomeTeam:     *home,
		AwayTeam:     *away,
		Stadium:      rec.Stadium,
		HomeScore:    rec.HomeScore,
		AwayScore:    rec.AwayScore,
	}
	game.Status = DeriveStatus(rec, nil, now)
	return game, "", nil
}

// applyGame copies the mutable fields of rec onto g and reports whether anything changed.
func applyGame(g crawler.Game, rec crawler.RawGameRecord, now time.Time) (crawler.Game, bool) {
	before := g
	g.HomeScore = rec.HomeScore
	g.AwayScore = rec.AwayScore
	if rec.Stadium != "" {
		g.Stadium = rec.Stadium
	}
	g.Status = DeriveStatus(rec, &before, now)
	changed := g.HomeScore != before.HomeScore ||
		g.AwayScore != before.AwayScore ||
		g.Stadium != before.Stadium ||
		g.Status != before.Status
	return g, changed
}

// DeriveStatus picks the status to persist. An explicit FINISHED or CANCELED from the
// crawler wins. Otherwise a persisted CANCELED is kept, a nonzero score means FINISHED,
// and a kickoff before now means FINISHED. Everything else is SCHEDULED.
func DeriveStatus(rec crawler.RawGameRecord, persisted *crawler.Game, now time.Time) crawler.GameStatus {
	switch rec.Status {
	case crawler.StatusFinished, crawler.StatusCanceled:
		return rec.Status
	}
	if persisted != nil && persisted.Status == crawler.StatusCanceled {
		return crawler.StatusCanceled
	}
	if rec.HomeScore != 0 || rec.AwayScore != 0 {
		return crawler.StatusFinished
	}
	if !rec.GameDateTime.IsZero() && rec.GameDateTime.Before(now) {
		return crawler.StatusFinished
	}
	return crawler.StatusScheduled
}

func (e *Engine) skip(logger *zap.Logger, entity string, kind crawler.SkipKind, detail string) {
	logger.Warn("reconcile skipped record",
		zap.String("entity", entity),
		zap.String("reason", string(kind)),
		zap.String("detail", detail),
	)
	metrics.ObserveSkip("reconcile_"+entity, string(kind))
}

// teamResolver caches short name lookups for one batch.
type teamResolver struct {
	lookup crawler.TeamLookup
	names  crawler.TeamNames
	cache  map[string]*crawler.Team
}

func newTeamResolver(lookup crawler.TeamLookup, names crawler.TeamNames) *teamResolver {
	return &teamResolver{lookup: lookup, names: names, cache: make(map[string]*crawler.Team)}
}

// resolve maps a short name to a persisted team. A non-empty reason means the team could
// not be resolved and the record should be skipped; err is set only for a canceled ctx.
func (r *teamResolver) resolve(ctx context.Context, short string) (*crawler.Team, string, error) {
	if team, ok := r.cache[short]; ok {
		if team == nil {
			return nil, fmt.Sprintf("team %q did not resolve", short), nil
		}
		return team, "", nil
	}
	full := r.names.FullName(short)
	if r.names.IsUnknown(full) {
		r.cache[short] = nil
		return nil, fmt.Sprintf("short name %q is not mapped", short), nil
	}
	team, err := r.lookup.FindByFullName(ctx, full)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", fmt.Errorf("resolve team %q: %w", full, ctxErr)
		}
		// not cached: the next record may succeed
		return nil, fmt.Sprintf("look up team %q: %v", full, err), nil
	}
	if team == nil {
		r.cache[short] = nil
		return nil, fmt.Sprintf("team %q is not persisted", full), nil
	}
	if team.Code == "" {
		code := r.names.Code(short)
		team.Code = code
	}
	if team.ShortName == "" {
		team.ShortName = r.names.ShortName(full)
	}
	r.cache[short] = team
	return team, "", nil
}
