package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/reconcile"
)

func TestComputeStandings(t *testing.T) {
	lotte := crawler.Team{ID: 1, Name: "롯데 자이언츠"}
	doosan := crawler.Team{ID: 2, Name: "두산 베어스"}
	nc := crawler.Team{ID: 3, Name: "NC 다이노스"}
	kiwoom := crawler.Team{ID: 4, Name: "키움 히어로즈"}
	outsider := crawler.Team{ID: 99, Name: "상무"}

	game := func(home, away crawler.Team, hs, as int, status crawler.GameStatus, year int) crawler.Game {
		return crawler.Game{
			HomeTeam: home, AwayTeam: away, HomeScore: hs, AwayScore: as, Status: status,
			GameDateTime: kst(year, 7, 1, 18, 30),
		}
	}
	games := []crawler.Game{
		game(lotte, doosan, 5, 3, crawler.StatusFinished, 2025),
		game(lotte, nc, 2, 2, crawler.StatusFinished, 2025),
		game(nc, doosan, 1, 0, crawler.StatusFinished, 2025),
		game(doosan, lotte, 7, 1, crawler.StatusFinished, 2025),
		game(nc, lotte, 0, 0, crawler.StatusScheduled, 2025),
		game(nc, lotte, 0, 0, crawler.StatusCanceled, 2025),
		game(lotte, doosan, 9, 0, crawler.StatusFinished, 2024),
		game(lotte, outsider, 9, 0, crawler.StatusFinished, 2025),
	}
	existing := []crawler.Ranking{{ID: 12, Team: nc, SeasonYear: 2025, Rank: 4}}

	table, err := reconcile.ComputeStandings(2025, []crawler.Team{lotte, doosan, nc, kiwoom}, games, existing, now)
	require.NoError(t, err)
	require.Len(t, table, 4)

	// NC 1-0-1 (1.000), 롯데 1-1-1 (.500, 1 win), 두산 1-2-0 (.333), 키움 0-0-0 (0)
	assert.Equal(t, "NC 다이노스", table[0].Team.Name)
	assert.Equal(t, int64(12), table[0].ID)
	assert.Equal(t, 1, table[0].Rank)
	assert.Equal(t, 1.0, table[0].WinRate)
	assert.Equal(t, 2, table[0].GamesPlayed)
	assert.Equal(t, 0.0, table[0].GamesBehind)

	assert.Equal(t, "롯데 자이언츠", table[1].Team.Name)
	assert.Equal(t, 1, table[1].Wins)
	assert.Equal(t, 1, table[1].Losses)
	assert.Equal(t, 1, table[1].Draws)
	assert.Equal(t, 3, table[1].GamesPlayed)
	assert.Equal(t, 0.5, table[1].WinRate)
	assert.Equal(t, 0.5, table[1].GamesBehind)

	assert.Equal(t, "두산 베어스", table[2].Team.Name)
	assert.Equal(t, 1.0, table[2].GamesBehind)

	assert.Equal(t, "키움 히어로즈", table[3].Team.Name)
	assert.Equal(t, 4, table[3].Rank)
	assert.Equal(t, 0, table[3].GamesPlayed)
	assert.Equal(t, 0.0, table[3].WinRate)
	assert.Equal(t, 0.5, table[3].GamesBehind)
	for _, r := range table {
		assert.Equal(t, 2025, r.SeasonYear)
		assert.Equal(t, now, r.UpdatedAt)
	}
}

func TestComputeStandingsTieBreaks(t *testing.T) {
	a := crawler.Team{ID: 1, Name: "A"}
	b := crawler.Team{ID: 2, Name: "B"}
	c := crawler.Team{ID: 3, Name: "C"}
	d := crawler.Team{ID: 4, Name: "D"}
	e := crawler.Team{ID: 5, Name: "E"}
	fin := func(home, away crawler.Team, hs, as int) crawler.Game {
		return crawler.Game{HomeTeam: home, AwayTeam: away, HomeScore: hs, AwayScore: as,
			Status: crawler.StatusFinished, GameDateTime: kst(2025, 5, 5, 14, 0)}
	}
	// A 2-2 and B 1-1 share a rate, so wins decide. C 0-1 and E 0-0 share rate and wins, so losses decide.
	games := []crawler.Game{fin(a, b, 1, 0), fin(a, b, 0, 1), fin(a, c, 1, 0), fin(a, d, 0, 1)}
	table, err := reconcile.ComputeStandings(2025, []crawler.Team{c, b, a, e, d}, games, nil, now)
	require.NoError(t, err)
	names := make([]string, 0, len(table))
	for _, r := range table {
		names = append(names, r.Team.Name)
	}
	assert.Equal(t, []string{"D", "A", "B", "E", "C"}, names)
}

func TestComputeStandingsWithoutTeams(t *testing.T) {
	_, err := reconcile.ComputeStandings(2025, nil, nil, nil, now)
	assert.ErrorIs(t, err, reconcile.ErrNoTeams)
}
