package reconcile

import (
	"errors"
	"slices"
	"time"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

// ErrNoTeams is returned when standings are requested before any team exists.
var ErrNoTeams = errors.New("no teams registered")

type record struct {
	team                crawler.Team
	wins, losses, draws int
}

func (r record) winRate() float64 {
	if decided := r.wins + r.losses; decided > 0 {
		return float64(r.wins) / float64(decided)
	}
	return 0
}

// ComputeStandings derives a season table from the FINISHED games played in that season
// (by kickoff date in Korea). Every team appears, including teams without games. Games
// involving a team outside teams are ignored. Existing rankings keep their identity.
func ComputeStandings(season int, teams []crawler.Team, games []crawler.Game, existing []crawler.Ranking, now time.Time) ([]crawler.Ranking, error) {
	if len(teams) == 0 {
		return nil, ErrNoTeams
	}
	records := make(map[int64]*record, len(teams))
	order := make([]*record, 0, len(teams))
	for _, t := range teams {
		r := &record{team: t}
		records[t.ID] = r
		order = append(order, r)
	}
	for _, g := range games {
		if g.Status != crawler.StatusFinished || g.GameDateTime.In(crawler.Location).Year() != season {
			continue
		}
		home, okHome := records[g.HomeTeam.ID]
		away, okAway := records[g.AwayTeam.ID]
		if !okHome || !okAway {
			continue
		}
		switch {
		case g.HomeScore > g.AwayScore:
			home.wins++
			away.losses++
		case g.HomeScore < g.AwayScore:
			home.losses++
			away.wins++
		default:
			home.draws++
			away.draws++
		}
	}

	slices.SortStableFunc(order, func(a, b *record) int {
		switch ra, rb := a.winRate(), b.winRate(); {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		if a.wins != b.wins {
			return b.wins - a.wins
		}
		return a.losses - b.losses
	})

	prev := make(map[int64]crawler.Ranking, len(existing))
	for _, r := range existing {
		prev[r.Team.ID] = r
	}
	leader := order[0]
	out := make([]crawler.Ranking, 0, len(order))
	for i, r := range order {
		ranking := prev[r.team.ID]
		ranking.Team = r.team
		ranking.SeasonYear = season
		ranking.Rank = i + 1
		ranking.Wins = r.wins
		ranking.Losses = r.losses
		ranking.Draws = r.draws
		ranking.GamesPlayed = r.wins + r.losses + r.draws
		ranking.WinRate = r.winRate()
		ranking.GamesBehind = float64((leader.wins-r.wins)+(r.losses-leader.losses)) / 2
		ranking.UpdatedAt = now
		out = append(out, ranking)
	}
	return out, nil
}
