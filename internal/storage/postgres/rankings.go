package postgres

import (
	"context"
	"fmt"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

const rankingSelect = `
	SELECT r.id, r.season_year, r.rank, r.games_played, r.wins, r.losses, r.draws,
		r.win_rate, r.games_behind, r.updated_at,
		t.id, t.name, t.short_name, t.code, t.logo_url`

type rankingRepo struct{ *Store }

func scanRanking(row scanner) (crawler.Ranking, error) {
	var r crawler.Ranking
	err := row.Scan(
		&r.ID, &r.SeasonYear, &r.Rank, &r.GamesPlayed, &r.Wins, &r.Losses, &r.Draws,
		&r.WinRate, &r.GamesBehind, &r.UpdatedAt,
		&r.Team.ID, &r.Team.Name, &r.Team.ShortName, &r.Team.Code, &r.Team.LogoURL,
	)
	return r, err
}

func (r rankingRepo) FindBySeasonOrderedByRank(ctx context.Context, year int) ([]crawler.Ranking, error) {
	query := rankingSelect + `
	FROM rankings r
	JOIN teams t ON t.id = r.team_id
	WHERE r.season_year = $1
	ORDER BY r.rank, t.name`
	rows, err := r.pool.Query(ctx, query, year)
	if err != nil {
		return nil, fmt.Errorf("find rankings: %w", err)
	}
	defer rows.Close()

	var rankings []crawler.Ranking
	for rows.Next() {
		rk, err := scanRanking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ranking row: %w", err)
		}
		rankings = append(rankings, rk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find rankings: %w", err)
	}
	return rankings, nil
}

// Save upserts on (team_id, season_year), overwriting every numeric column.
func (r rankingRepo) Save(ctx context.Context, ranking crawler.Ranking) (crawler.Ranking, error) {
	query := `
	WITH r AS (
		INSERT INTO rankings (team_id, season_year, rank, games_played, wins, losses, draws, win_rate, games_behind, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, now()))
		ON CONFLICT (team_id, season_year) DO UPDATE
		SET rank = EXCLUDED.rank,
			games_played = EXCLUDED.games_played,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			draws = EXCLUDED.draws,
			win_rate = EXCLUDED.win_rate,
			games_behind = EXCLUDED.games_behind,
			updated_at = EXCLUDED.updated_at
		RETURNING *
	)` + rankingSelect + `
	FROM r
	JOIN teams t ON t.id = r.team_id`

	var updatedAt any
	if !ranking.UpdatedAt.IsZero() {
		updatedAt = ranking.UpdatedAt
	}
	saved, err := scanRanking(r.pool.QueryRow(ctx, query,
		ranking.Team.ID,
		ranking.SeasonYear,
		ranking.Rank,
		ranking.GamesPlayed,
		ranking.Wins,
		ranking.Losses,
		ranking.Draws,
		ranking.WinRate,
		ranking.GamesBehind,
		updatedAt,
	))
	if err != nil {
		return crawler.Ranking{}, wrapWrite(fmt.Sprintf("save ranking team=%d season=%d", ranking.Team.ID, ranking.SeasonYear), err)
	}
	return saved, nil
}
