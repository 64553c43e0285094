// Package memory provides in-memory stores for development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/store"
)

// Store keeps teams, games, rankings and lineups in maps guarded by one lock.
type Store struct {
	mu sync.RWMutex

	clock crawler.Clock

	teams      map[int64]crawler.Team
	teamByName map[string]int64
	nextTeamID int64

	games      map[string]crawler.Game
	nextGameID int64

	rankings      map[rankingKey]crawler.Ranking
	nextRankingID int64

	lineups map[string][]crawler.Lineup

	gameSaves int
}

type rankingKey struct {
	teamID int64
	season int
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// New creates an empty Store. clock may be nil.
func New(clock crawler.Clock) *Store {
	if clock == nil {
		clock = wallClock{}
	}
	return &Store{
		clock:      clock,
		teams:      make(map[int64]crawler.Team),
		teamByName: make(map[string]int64),
		games:      make(map[string]crawler.Game),
		rankings:   make(map[rankingKey]crawler.Ranking),
		lineups:    make(map[string][]crawler.Lineup),
	}
}

// Teams returns the team repository.
func (s *Store) Teams() store.TeamRepository { return (*teamRepo)(s) }

// Games returns the game repository.
func (s *Store) Games() crawler.GameStore { return (*gameRepo)(s) }

// Rankings returns the ranking repository.
func (s *Store) Rankings() crawler.RankingStore { return (*rankingRepo)(s) }

// Lineups returns the lineup repository.
func (s *Store) Lineups() store.LineupRepository { return (*lineupRepo)(s) }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// GameSaves counts successful game writes, for tests asserting write volume.
func (s *Store) GameSaves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameSaves
}

// GameCount returns the number of persisted games.
func (s *Store) GameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

type teamRepo Store

func (r *teamRepo) FindByFullName(_ context.Context, name string) (*crawler.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.teamByName[name]
	if !ok {
		return nil, nil
	}
	team := r.teams[id]
	return &team, nil
}

func (r *teamRepo) FindAll(context.Context) ([]crawler.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]crawler.Team, 0, len(r.teams))
	for _, t := range r.teams {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b crawler.Team) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (r *teamRepo) Seed(_ context.Context, teams []crawler.Team) ([]crawler.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]crawler.Team, 0, len(teams))
	for _, t := range teams {
		if t.Name == "" {
			return out, fmt.Errorf("seed team: name is required")
		}
		if id, ok := r.teamByName[t.Name]; ok {
			existing := r.teams[id]
			existing.ShortName = t.ShortName
			existing.Code = t.Code
			if t.LogoURL != "" {
				existing.LogoURL = t.LogoURL
			}
			r.teams[id] = existing
			out = append(out, existing)
			continue
		}
		r.nextTeamID++
		t.ID = r.nextTeamID
		r.teams[t.ID] = t
		r.teamByName[t.Name] = t.ID
		out = append(out, t)
	}
	return out, nil
}

type gameRepo Store

// FindByDateRange returns games with start <= kickoff < end, ordered by kickoff then key.
func (r *gameRepo) FindByDateRange(_ context.Context, start, end time.Time) ([]crawler.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []crawler.Game
	for _, g := range r.games {
		if !g.GameDateTime.Before(start) && g.GameDateTime.Before(end) {
			out = append(out, r.withTeams(g))
		}
	}
	slices.SortFunc(out, func(a, b crawler.Game) int {
		if c := a.GameDateTime.Compare(b.GameDateTime); c != 0 {
			return c
		}
		return cmp.Compare(a.GameKey, b.GameKey)
	})
	return out, nil
}

// Save upserts by game key. Team associations of an existing game are kept.
func (r *gameRepo) Save(_ context.Context, game crawler.Game) (crawler.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save(game)
}

func (r *gameRepo) SaveAll(_ context.Context, games []crawler.Game) ([]crawler.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]crawler.Game, 0, len(games))
	for _, g := range games {
		saved, err := r.save(g)
		if err != nil {
			return out, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (r *gameRepo) save(game crawler.Game) (crawler.Game, error) {
	if game.GameKey == "" {
		return crawler.Game{}, fmt.Errorf("save game: game key is required")
	}
	now := r.clock.Now()
	if existing, ok := r.games[game.GameKey]; ok {
		existing.GameDateTime = game.GameDateTime
		existing.Stadium = game.Stadium
		existing.HomeScore = game.HomeScore
		existing.AwayScore = game.AwayScore
		existing.Status = game.Status
		existing.UpdatedAt = now
		r.games[game.GameKey] = existing
		r.gameSaves++
		return r.withTeams(existing), nil
	}
	if _, ok := r.teams[game.HomeTeam.ID]; !ok {
		return crawler.Game{}, fmt.Errorf("save game %s: home team %d: %w", game.GameKey, game.HomeTeam.ID, store.ErrUnknownTeam)
	}
	if _, ok := r.teams[game.AwayTeam.ID]; !ok {
		return crawler.Game{}, fmt.Errorf("save game %s: away team %d: %w", game.GameKey, game.AwayTeam.ID, store.ErrUnknownTeam)
	}
	r.nextGameID++
	game.ID = r.nextGameID
	game.CreatedAt = now
	game.UpdatedAt = now
	r.games[game.GameKey] = game
	r.gameSaves++
	return r.withTeams(game), nil
}

func (r *gameRepo) withTeams(g crawler.Game) crawler.Game {
	if t, ok := r.teams[g.HomeTeam.ID]; ok {
		g.HomeTeam = t
	}
	if t, ok := r.teams[g.AwayTeam.ID]; ok {
		g.AwayTeam = t
	}
	return g
}

type rankingRepo Store

func (r *rankingRepo) FindBySeasonOrderedByRank(_ context.Context, year int) ([]crawler.Ranking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []crawler.Ranking
	for k, rk := range r.rankings {
		if k.season != year {
			continue
		}
		if t, ok := r.teams[k.teamID]; ok {
			rk.Team = t
		}
		out = append(out, rk)
	}
	slices.SortFunc(out, func(a, b crawler.Ranking) int {
		if c := cmp.Compare(a.Rank, b.Rank); c != 0 {
			return c
		}
		return cmp.Compare(a.Team.Name, b.Team.Name)
	})
	return out, nil
}

// Save upserts on (team, season).
func (r *rankingRepo) Save(_ context.Context, ranking crawler.Ranking) (crawler.Ranking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[ranking.Team.ID]; !ok {
		return crawler.Ranking{}, fmt.Errorf("save ranking: team %d: %w", ranking.Team.ID, store.ErrUnknownTeam)
	}
	key := rankingKey{teamID: ranking.Team.ID, season: ranking.SeasonYear}
	if existing, ok := r.rankings[key]; ok {
		ranking.ID = existing.ID
	} else {
		r.nextRankingID++
		ranking.ID = r.nextRankingID
	}
	if ranking.UpdatedAt.IsZero() {
		ranking.UpdatedAt = r.clock.Now()
	}
	r.rankings[key] = ranking
	return ranking, nil
}

type lineupRepo Store

func (r *lineupRepo) ReplaceLineupsForGame(_ context.Context, gameKey string, lineups []crawler.Lineup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[gameKey]; !ok {
		return fmt.Errorf("replace lineups for %s: %w", gameKey, store.ErrNotFound)
	}
	r.lineups[gameKey] = cloneLineups(lineups)
	return nil
}

func (r *lineupRepo) LineupsForGame(_ context.Context, gameKey string) ([]crawler.Lineup, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lineups, ok := r.lineups[gameKey]
	if !ok {
		return nil, fmt.Errorf("lineups for %s: %w", gameKey, store.ErrNotFound)
	}
	return cloneLineups(lineups), nil
}

func cloneLineups(in []crawler.Lineup) []crawler.Lineup {
	out := make([]crawler.Lineup, len(in))
	for i, l := range in {
		l.Players = slices.Clone(l.Players)
		out[i] = l
	}
	return out
}

var _ store.Store = (*Store)(nil)
