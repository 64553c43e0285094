package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/store"
)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

var now = time.Date(2025, 7, 2, 3, 0, 0, 0, time.UTC)

func seeded(t *testing.T) (*Store, []crawler.Team) {
	t.Helper()
	s := New(stubClock{now: now})
	teams, err := s.Teams().Seed(context.Background(), []crawler.Team{
		{Name: "롯데 자이언츠", ShortName: "롯데", Code: "LT"},
		{Name: "두산 베어스", ShortName: "두산", Code: "OB"},
	})
	require.NoError(t, err)
	return s, teams
}

func TestTeamSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, first := seeded(t)

	again, err := s.Teams().Seed(ctx, []crawler.Team{{Name: "롯데 자이언츠", ShortName: "롯데", Code: "LOT"}})
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, again[0].ID)
	assert.Equal(t, "LOT", again[0].Code)

	all, err := s.Teams().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	missing, err := s.Teams().FindByFullName(ctx, "SSG 랜더스")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.Teams().Seed(ctx, []crawler.Team{{ShortName: "X"}})
	assert.Error(t, err)
}

func TestGameSaveUpsertsByKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, teams := seeded(t)
	kickoff := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)

	created, err := s.Games().Save(ctx, crawler.Game{
		GameKey: "20250701LTOB0", GameDateTime: kickoff,
		HomeTeam: teams[0], AwayTeam: teams[1], Stadium: "사직", Status: crawler.StatusScheduled,
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, now, created.CreatedAt)

	created.HomeScore, created.AwayScore, created.Status = 5, 3, crawler.StatusFinished
	created.HomeTeam = crawler.Team{ID: 999}
	updated, err := s.Games().Save(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "롯데 자이언츠", updated.HomeTeam.Name, "teams of an existing game are kept")
	assert.Equal(t, 5, updated.HomeScore)
	assert.Equal(t, 1, s.GameCount())
	assert.Equal(t, 2, s.GameSaves())

	games, err := s.Games().FindByDateRange(ctx, kickoff.Truncate(24*time.Hour), kickoff.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, crawler.StatusFinished, games[0].Status)

	games, err = s.Games().FindByDateRange(ctx, kickoff.Add(time.Minute), kickoff.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestGameSaveRejectsUnknownTeams(t *testing.T) {
	t.Parallel()
	s, teams := seeded(t)

	_, err := s.Games().Save(context.Background(), crawler.Game{
		GameKey: "20250701LTXX0", HomeTeam: teams[0], AwayTeam: crawler.Team{ID: 42},
	})
	assert.ErrorIs(t, err, store.ErrUnknownTeam)

	saved, err := s.Games().SaveAll(context.Background(), []crawler.Game{
		{GameKey: "20250702LTOB0", HomeTeam: teams[0], AwayTeam: teams[1]},
		{GameKey: ""},
	})
	assert.Error(t, err)
	assert.Len(t, saved, 1)
}

func TestRankingSaveUpsertsOnTeamAndSeason(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, teams := seeded(t)

	first, err := s.Rankings().Save(ctx, crawler.Ranking{Team: teams[1], SeasonYear: 2025, Rank: 2})
	require.NoError(t, err)
	_, err = s.Rankings().Save(ctx, crawler.Ranking{Team: teams[0], SeasonYear: 2025, Rank: 1})
	require.NoError(t, err)
	again, err := s.Rankings().Save(ctx, crawler.Ranking{Team: teams[1], SeasonYear: 2025, Rank: 3, GamesBehind: 1.5})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	_, err = s.Rankings().Save(ctx, crawler.Ranking{Team: teams[1], SeasonYear: 2024, Rank: 9})
	require.NoError(t, err)

	rankings, err := s.Rankings().FindBySeasonOrderedByRank(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, rankings, 2)
	assert.Equal(t, "롯데 자이언츠", rankings[0].Team.Name)
	assert.Equal(t, 3, rankings[1].Rank)
	assert.Equal(t, 1.5, rankings[1].GamesBehind)

	_, err = s.Rankings().Save(ctx, crawler.Ranking{Team: crawler.Team{ID: 77}, SeasonYear: 2025})
	assert.ErrorIs(t, err, store.ErrUnknownTeam)
}

func TestLineupsReplaceWholeGame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, teams := seeded(t)
	_, err := s.Games().Save(ctx, crawler.Game{GameKey: "20250701LTOB0", HomeTeam: teams[0], AwayTeam: teams[1]})
	require.NoError(t, err)

	order := 1
	lineups := []crawler.Lineup{{
		GameKey: "20250701LTOB0", Side: crawler.SideHome, TeamName: "롯데 자이언츠",
		Players: []crawler.LineupPlayer{{PlayerName: "황성빈", Role: crawler.RoleBatter, OrderNumber: &order}},
	}}
	require.NoError(t, s.Lineups().ReplaceLineupsForGame(ctx, "20250701LTOB0", lineups))
	lineups[0].Players[0].PlayerName = "mutated"

	got, err := s.Lineups().LineupsForGame(ctx, "20250701LTOB0")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "황성빈", got[0].Players[0].PlayerName)

	require.NoError(t, s.Lineups().ReplaceLineupsForGame(ctx, "20250701LTOB0", nil))
	got, err = s.Lineups().LineupsForGame(ctx, "20250701LTOB0")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.Lineups().LineupsForGame(ctx, "20990101XXXX0")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Lineups().ReplaceLineupsForGame(ctx, "20990101XXXX0", nil), store.ErrNotFound)
}
